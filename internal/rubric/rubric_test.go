package rubric

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefault_IsValid(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(r.Dimensions) == 0 {
		t.Fatal("built-in rubric has no dimensions")
	}
	if r.IsPointsBased() {
		t.Error("built-in rubric should be score based")
	}
	if got := len(r.ByTarget(TargetImages)); got != 1 {
		t.Errorf("image dimensions = %d, want 1", got)
	}
	if _, ok := r.Rule("security_override"); !ok {
		t.Error("security_override rule missing")
	}
	if _, ok := r.Rule("no_such_rule"); ok {
		t.Error("missing rule reported present")
	}
	if r.Aggregation == nil || r.Aggregation.AccuracyDimension != DefaultAccuracyID {
		t.Errorf("aggregation = %+v", r.Aggregation)
	}
}

func TestLoad_JSONWithLevelsAndAliases(t *testing.T) {
	data := []byte(`{
		"dimensions": [
			{"id": "d1", "name": "Progress", "target_artifact": "repository",
			 "levels": [
				{"id": "complete", "name": "Complete", "points": 10},
				{"id": "partial", "name": "Partial", "points": 7},
				{"id": "superficial", "name": "Superficial", "points": 4},
				{"id": "na", "name": "Not applicable", "points": 0}
			 ],
			 "exclude_from_total_if_level": "na"},
			{"id": "d2", "target_artifact": "document-text"}
		],
		"total_points": 40
	}`)
	r, err := Load(data, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Dimensions[0].TargetArtifact != TargetRepository {
		t.Errorf("target = %q", r.Dimensions[0].TargetArtifact)
	}
	if r.Dimensions[1].TargetArtifact != TargetDocument {
		t.Errorf("target = %q", r.Dimensions[1].TargetArtifact)
	}
	if !r.IsPointsBased() {
		t.Error("expected points-based rubric")
	}
	if got := r.Dimensions[0].MaxPoints(); got != 10 {
		t.Errorf("MaxPoints = %d, want 10", got)
	}
	if got := r.Dimensions[1].DisplayName(); got != "d2" {
		t.Errorf("DisplayName = %q", got)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"duplicate id":     "dimensions:\n  - {id: a, target_artifact: github_repo}\n  - {id: a, target_artifact: github_repo}\n",
		"unknown target":   "dimensions:\n  - {id: a, target_artifact: slides}\n",
		"missing id":       "dimensions:\n  - {target_artifact: github_repo}\n",
		"undeclared level": "dimensions:\n  - {id: a, target_artifact: github_repo, exclude_from_total_if_level: na}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load([]byte(src), ".yaml"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFromPath_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rubric.yml")
	src := "dimensions:\n  - id: a\n    target_artifact: pdf_images\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, r.IDs()); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		dim  Dimension
		want []Route
	}{
		{"history", Dimension{ForensicInstruction: "Read the Git log"}, []Route{RouteHistory}},
		{"graph", Dimension{ForensicInstruction: "Check parallel branches"}, []Route{RouteStructure}},
		{"state", Dimension{ForensicInstruction: "Verify state reducers"}, []Route{RouteStructure, RouteStateSchema}},
		{"state by id", Dimension{ID: StateManagementID, ForensicInstruction: "typed models"}, []Route{RouteStateSchema}},
		{"progress", Dimension{ID: DevelopmentID, ForensicInstruction: "completeness"}, []Route{RouteProgress}},
		{"safety by keyword", Dimension{ForensicInstruction: "No shell commands"}, []Route{RouteToolSafety}},
		{"generic", Dimension{ForensicInstruction: "README quality"}, nil},
		{"tags win", Dimension{ForensicInstruction: "git history", Tags: []string{"tool_safety", "bogus", "tool_safety"}}, []Route{RouteToolSafety}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Classify(tc.dim)); diff != "" {
				t.Errorf("Classify (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsArchitecture(t *testing.T) {
	if !IsArchitecture("Graph Orchestration Architecture") {
		t.Error("expected architecture")
	}
	if IsArchitecture("Git Forensic Analysis") {
		t.Error("unexpected architecture")
	}
}
