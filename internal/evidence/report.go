package evidence

// CriterionResult is the reconciled verdict for one rubric dimension.
type CriterionResult struct {
	DimensionID    string    `json:"dimension_id"`
	DimensionName  string    `json:"dimension_name"`
	FinalScore     int       `json:"final_score"`
	JudgeOpinions  []Opinion `json:"judge_opinions"`
	DissentSummary *string   `json:"dissent_summary,omitempty"`
	Remediation    string    `json:"remediation"`

	// Points-based mode only.
	Points            *int   `json:"points,omitempty"`
	ExcludedFromTotal bool   `json:"excluded_from_total,omitempty"`
	SelectedLevelName string `json:"selected_level_name,omitempty"`
}

// HasDissent reports whether the judges disagreed beyond the variance threshold.
func (c CriterionResult) HasDissent() bool {
	return c.DissentSummary != nil
}

// Report is the final audit result.
type Report struct {
	RepoURL          string            `json:"repo_url"`
	ExecutiveSummary string            `json:"executive_summary"`
	OverallScore     float64           `json:"overall_score"`
	Criteria         []CriterionResult `json:"criteria"`
	RemediationPlan  string            `json:"remediation_plan"`
	TotalPoints      *int              `json:"total_points,omitempty"`
	MaxPoints        *int              `json:"max_points,omitempty"`
	Degraded         bool              `json:"degraded,omitempty"`
}

// PointsBased reports whether the report was assembled in points mode.
func (r *Report) PointsBased() bool {
	return r != nil && r.TotalPoints != nil
}

// DissentCount returns the number of criteria carrying a dissent summary.
func (r *Report) DissentCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Criteria {
		if c.HasDissent() {
			n++
		}
	}
	return n
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }
