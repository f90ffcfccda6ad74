package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"auditor/internal/evidence"
)

func sampleRun(id, repo string, finished time.Time) *Run {
	return &Run{
		ID:           id,
		RepoURL:      repo,
		DocumentPath: "reports/final.pdf",
		RubricName:   "week2",
		Oracle:       "basic",
		StartedAt:    finished.Add(-90 * time.Second),
		FinishedAt:   finished,
		OverallScore: 3.5,
		TotalPoints:  evidence.IntPtr(7),
		MaxPoints:    evidence.IntPtr(10),
		ReportPath:   "audit/report_proj.md",
		Report: &evidence.Report{
			RepoURL:      repo,
			OverallScore: 3.5,
			Criteria: []evidence.CriterionResult{
				{DimensionID: "graph", DimensionName: "Graph", FinalScore: 4, Points: evidence.IntPtr(7)},
				{DimensionID: "safety", DimensionName: "Safety", FinalScore: 3, DissentSummary: evidence.StrPtr("spread 4")},
			},
			TotalPoints: evidence.IntPtr(7),
			MaxPoints:   evidence.IntPtr(10),
		},
	}
}

// exercise runs the same contract against every implementation.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := sampleRun("aaaa1111-0000-0000-0000-000000000000", "https://github.com/acme/one", base)
	second := sampleRun("aaaa2222-0000-0000-0000-000000000000", "https://github.com/acme/two", base.Add(time.Hour))
	second.Degraded, second.TotalPoints, second.MaxPoints = true, nil, nil
	for _, r := range []*Run{first, second} {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	generated := sampleRun("", "https://github.com/acme/three", base.Add(-time.Hour))
	if err := s.SaveRun(ctx, generated); err != nil || generated.ID == "" {
		t.Fatalf("SaveRun with generated id: %q, %v", generated.ID, err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil || len(runs) != 3 {
		t.Fatalf("ListRuns: %d, %v", len(runs), err)
	}
	if runs[0].ID != second.ID || runs[2].ID != generated.ID {
		t.Errorf("not newest first: %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}
	if runs[0].Report != nil || !runs[0].Degraded || runs[0].TotalPoints != nil {
		t.Errorf("listed run = %+v", runs[0])
	}
	if limited, _ := s.ListRuns(ctx, 1); len(limited) != 1 {
		t.Errorf("limit ignored: %d", len(limited))
	}

	got, err := s.GetRun(ctx, "aaaa1")
	if err != nil {
		t.Fatalf("GetRun prefix: %v", err)
	}
	if got.ID != first.ID || got.Duration() != 90*time.Second || *got.TotalPoints != 7 {
		t.Errorf("GetRun = %+v", got)
	}
	if diff := cmp.Diff(first.Report, got.Report); diff != "" {
		t.Errorf("report payload (-want +got):\n%s", diff)
	}
	if _, err := s.GetRun(ctx, "aaaa"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("ambiguous prefix err = %v", err)
	}
	if _, err := s.GetRun(ctx, "zzzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}

	crit, err := s.Criteria(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []CriterionScore{
		{RunID: first.ID, Position: 0, DimensionID: "graph", DimensionName: "Graph", FinalScore: 4, Points: evidence.IntPtr(7)},
		{RunID: first.ID, Position: 1, DimensionID: "safety", DimensionName: "Safety", FinalScore: 3, Dissent: true},
	}
	if diff := cmp.Diff(want, crit); diff != "" {
		t.Errorf("criteria (-want +got):\n%s", diff)
	}
}

func TestSqlStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exercise(t, s)
}

func TestSqlStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	run := sampleRun("", "https://github.com/acme/one", time.Now())
	if err := s.SaveRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetRun(context.Background(), run.ID); err != nil {
		t.Errorf("run lost across reopen: %v", err)
	}
}

func TestSqlStore_DuplicateIDRejected(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	run := sampleRun("dup", "r", time.Now())
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(ctx, sampleRun("dup", "r", time.Now())); err == nil {
		t.Error("duplicate id accepted")
	}
	if crit, _ := s.Criteria(ctx, "dup"); len(crit) != 2 {
		t.Errorf("failed insert leaked criteria: %d", len(crit))
	}
}

func TestMemStore(t *testing.T) {
	exercise(t, NewMemStore())
}
