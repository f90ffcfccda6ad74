// Package rubric defines the audit rubric: the dimensions evidence is
// collected and scored against, their optional point levels, and the
// synthesis-rule hints judges see.
package rubric

import (
	"fmt"
	"strings"
)

// TargetArtifact names the artifact a dimension is evaluated against.
type TargetArtifact string

const (
	TargetRepository TargetArtifact = "github_repo"
	TargetDocument   TargetArtifact = "pdf_report"
	TargetImages     TargetArtifact = "pdf_images"
)

// ParseTarget maps the accepted spellings onto the canonical target values.
func ParseTarget(s string) (TargetArtifact, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "github_repo", "repository", "repo", "git":
		return TargetRepository, nil
	case "pdf_report", "document", "document-text", "document_text", "doc":
		return TargetDocument, nil
	case "pdf_images", "document-images", "document_images", "images":
		return TargetImages, nil
	}
	return "", fmt.Errorf("unknown target artifact %q", s)
}

// Level is one ordered rung of a points-based dimension. Levels are listed
// best first.
type Level struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Points      int    `json:"points" yaml:"points"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Dimension is one axis of evaluation.
type Dimension struct {
	ID                      string         `json:"id" yaml:"id"`
	Name                    string         `json:"name" yaml:"name"`
	TargetArtifact          TargetArtifact `json:"target_artifact" yaml:"target_artifact"`
	ForensicInstruction     string         `json:"forensic_instruction" yaml:"forensic_instruction"`
	SuccessPattern          string         `json:"success_pattern" yaml:"success_pattern"`
	FailurePattern          string         `json:"failure_pattern" yaml:"failure_pattern"`
	JudicialLogic           string         `json:"judicial_logic,omitempty" yaml:"judicial_logic,omitempty"`
	Levels                  []Level        `json:"levels,omitempty" yaml:"levels,omitempty"`
	ExcludeFromTotalIfLevel string         `json:"exclude_from_total_if_level,omitempty" yaml:"exclude_from_total_if_level,omitempty"`

	// Tags, when present, replace keyword routing for repository evidence.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (d Dimension) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// IsPointsBased reports whether d carries point levels.
func (d Dimension) IsPointsBased() bool { return len(d.Levels) > 0 }

// MaxPoints returns the highest point value among d's levels.
func (d Dimension) MaxPoints() int {
	best := 0
	for i, l := range d.Levels {
		if i == 0 || l.Points > best {
			best = l.Points
		}
	}
	return best
}

// Aggregation configures the aggregator's cross-artifact enrichment.
type Aggregation struct {
	// AccuracyDimension receives the document-vs-repository path cross-reference.
	AccuracyDimension string `json:"accuracy_dimension,omitempty" yaml:"accuracy_dimension,omitempty"`
	// CrossLinks maps a dimension id to the related dimensions whose findings
	// are linked into it.
	CrossLinks map[string][]string `json:"cross_links,omitempty" yaml:"cross_links,omitempty"`
}

// Metadata is free-form rubric identification.
type Metadata struct {
	Name    string `json:"rubric_name,omitempty" yaml:"rubric_name,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Rubric is the loaded rubric document.
type Rubric struct {
	Metadata       Metadata          `json:"rubric_metadata" yaml:"rubric_metadata"`
	Dimensions     []Dimension       `json:"dimensions" yaml:"dimensions"`
	SynthesisRules map[string]string `json:"synthesis_rules,omitempty" yaml:"synthesis_rules,omitempty"`
	TotalPoints    int               `json:"total_points,omitempty" yaml:"total_points,omitempty"`
	Aggregation    *Aggregation      `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
}

// Rule returns the synthesis-rule hint named name. A missing rule is not an
// error; callers simply omit the hint.
func (r *Rubric) Rule(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.SynthesisRules[name]
	return v, ok && v != ""
}

// IsPointsBased reports whether any dimension declares levels.
func (r *Rubric) IsPointsBased() bool {
	for _, d := range r.Dimensions {
		if d.IsPointsBased() {
			return true
		}
	}
	return false
}

// ByTarget returns the dimensions evaluated against target, in rubric order.
func (r *Rubric) ByTarget(target TargetArtifact) []Dimension {
	var out []Dimension
	for _, d := range r.Dimensions {
		if d.TargetArtifact == target {
			out = append(out, d)
		}
	}
	return out
}

// IDs returns dimension ids in rubric order.
func (r *Rubric) IDs() []string {
	ids := make([]string, len(r.Dimensions))
	for i, d := range r.Dimensions {
		ids[i] = d.ID
	}
	return ids
}

// Validate checks referential integrity. An empty dimension list is left to
// the caller, which reports it with its own sentinel.
func (r *Rubric) Validate() error {
	seen := make(map[string]bool, len(r.Dimensions))
	for i, d := range r.Dimensions {
		if d.ID == "" {
			return fmt.Errorf("dimension %d: id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate dimension id %q", d.ID)
		}
		seen[d.ID] = true
		switch d.TargetArtifact {
		case TargetRepository, TargetDocument, TargetImages:
		default:
			return fmt.Errorf("dimension %s: unknown target artifact %q", d.ID, d.TargetArtifact)
		}
		if d.ExcludeFromTotalIfLevel != "" && !d.hasLevel(d.ExcludeFromTotalIfLevel) {
			return fmt.Errorf("dimension %s: exclusion level %q is not declared", d.ID, d.ExcludeFromTotalIfLevel)
		}
	}
	return nil
}

func (d Dimension) hasLevel(id string) bool {
	for _, l := range d.Levels {
		if l.ID == id {
			return true
		}
	}
	return false
}

// normalize rewrites target aliases in place.
func (r *Rubric) normalize() error {
	for i := range r.Dimensions {
		t, err := ParseTarget(string(r.Dimensions[i].TargetArtifact))
		if err != nil {
			return fmt.Errorf("dimension %s: %w", r.Dimensions[i].ID, err)
		}
		r.Dimensions[i].TargetArtifact = t
	}
	return nil
}
