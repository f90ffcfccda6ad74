package chief

import (
	"fmt"

	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

const (
	noDeliberation       = "No deliberation: evidence collection failed for every dimension."
	degradedRemediation  = "Re-run the audit with a reachable repository URL or path and a readable document."
	degradedSummaryShape = "Degraded audit of %s: evidence collection failed, so no judge deliberated. All %d dimensions scored at the floor (%d)."
)

// Degraded builds the floor-score report for a run whose evidence
// collection failed entirely. No judge is consulted.
func Degraded(r *rubric.Rubric, repoURL string) *evidence.Report {
	criteria := make([]evidence.CriterionResult, 0, len(r.Dimensions))
	for _, d := range r.Dimensions {
		c := evidence.CriterionResult{
			DimensionID:    d.ID,
			DimensionName:  d.DisplayName(),
			FinalScore:     evidence.MinScore,
			JudgeOpinions:  []evidence.Opinion{},
			DissentSummary: evidence.StrPtr(noDeliberation),
			Remediation:    degradedRemediation,
		}
		if d.IsPointsBased() {
			applyLevel(&c, d)
		}
		criteria = append(criteria, c)
	}
	rep := &evidence.Report{
		RepoURL:         repoURL,
		OverallScore:    evidence.MinScore,
		Criteria:        criteria,
		RemediationPlan: plan(criteria),
		Degraded:        true,
	}
	setPoints(rep, r)
	rep.ExecutiveSummary = fmt.Sprintf(degradedSummaryShape, orUnknown(repoURL), len(criteria), evidence.MinScore)
	return rep
}
