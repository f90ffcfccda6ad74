package chief

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

// RemediationLimit bounds per-criterion remediation text, in bytes.
const RemediationLimit = 500

// Justice synthesizes the final report.
type Justice struct {
	Log *slog.Logger
}

func (j *Justice) logger() *slog.Logger {
	if j != nil && j.Log != nil {
		return j.Log
	}
	return slog.Default()
}

// Synthesize reconciles every dimension in rubric order and assembles the
// report.
func (j *Justice) Synthesize(r *rubric.Rubric, repoURL string, ev evidence.Map, ops []evidence.Opinion) *evidence.Report {
	log := j.logger()
	grouped := evidence.ByCriterion(ops)

	criteria := make([]evidence.CriterionResult, 0, len(r.Dimensions))
	for _, d := range r.Dimensions {
		byJudge := grouped[d.ID]
		v := Reconcile(d, byJudge, ev[d.ID])
		c := evidence.CriterionResult{
			DimensionID:    d.ID,
			DimensionName:  d.DisplayName(),
			FinalScore:     v.Score,
			JudgeOpinions:  ordered(byJudge),
			DissentSummary: v.Dissent,
			Remediation:    Remediation(byJudge),
		}
		if d.IsPointsBased() {
			applyLevel(&c, d)
		}
		criteria = append(criteria, c)
		log.Debug("criterion reconciled", "dimension", d.ID, "score", v.Score, "rules", strings.Join(v.Fired, ","))
	}

	rep := &evidence.Report{
		RepoURL:         repoURL,
		OverallScore:    overall(criteria),
		Criteria:        criteria,
		RemediationPlan: plan(criteria),
	}
	setPoints(rep, r)
	rep.ExecutiveSummary = summary(rep)
	log.Info("report synthesized", "dimensions", len(criteria), "opinions", len(ops),
		"overall", rep.OverallScore, "dissents", rep.DissentCount())
	return rep
}

// ordered returns the opinions in canonical judge order.
func ordered(byJudge map[evidence.Judge]evidence.Opinion) []evidence.Opinion {
	out := make([]evidence.Opinion, 0, len(byJudge))
	for _, jd := range evidence.Judges() {
		if o, ok := byJudge[jd]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Remediation takes the Tech Lead's argument, or a short join of all
// arguments when the Tech Lead gave none.
func Remediation(byJudge map[evidence.Judge]evidence.Opinion) string {
	if o, ok := byJudge[evidence.TechLead]; ok && strings.TrimSpace(o.Argument) != "" {
		return evidence.Truncate(o.Argument, RemediationLimit)
	}
	var parts []string
	for _, o := range ordered(byJudge) {
		if a := strings.TrimSpace(o.Argument); a != "" {
			parts = append(parts, string(o.Judge)+": "+a)
		}
	}
	if len(parts) == 0 {
		return "No remediation provided."
	}
	return evidence.Truncate(strings.Join(parts, " | "), RemediationLimit)
}

// LevelIndex maps a 1..5 score onto n best-first levels: 5 selects the first
// level, each point lower moves one level down, and scores past the end
// collapse onto the last level.
func LevelIndex(score, n int) int {
	if n <= 0 {
		return 0
	}
	return min(max(evidence.MaxScore-score, 0), n-1)
}

func applyLevel(c *evidence.CriterionResult, d rubric.Dimension) {
	l := d.Levels[LevelIndex(c.FinalScore, len(d.Levels))]
	c.Points = evidence.IntPtr(l.Points)
	c.SelectedLevelName = l.Name
	if c.SelectedLevelName == "" {
		c.SelectedLevelName = l.ID
	}
	c.ExcludedFromTotal = d.ExcludeFromTotalIfLevel != "" && l.ID == d.ExcludeFromTotalIfLevel
}

// overall is the mean final score of criteria counted toward the total,
// rounded to two decimals.
func overall(criteria []evidence.CriterionResult) float64 {
	sum, n := 0, 0
	for _, c := range criteria {
		if c.ExcludedFromTotal {
			continue
		}
		sum += c.FinalScore
		n++
	}
	if n == 0 {
		for _, c := range criteria {
			sum += c.FinalScore
		}
		n = len(criteria)
	}
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*100) / 100
}

// setPoints fills report totals. Dimensions with levels sum their included
// points against their maximum. Without levels, a declared rubric total
// scales the overall score instead.
func setPoints(rep *evidence.Report, r *rubric.Rubric) {
	if r.IsPointsBased() {
		total, maxPts := 0, 0
		for i, d := range r.Dimensions {
			c := rep.Criteria[i]
			if !d.IsPointsBased() || c.ExcludedFromTotal {
				continue
			}
			total += *c.Points
			maxPts += d.MaxPoints()
		}
		rep.TotalPoints, rep.MaxPoints = evidence.IntPtr(total), evidence.IntPtr(maxPts)
		return
	}
	if r.TotalPoints > 0 {
		scaled := int(math.Round(rep.OverallScore / evidence.MaxScore * float64(r.TotalPoints)))
		rep.TotalPoints, rep.MaxPoints = evidence.IntPtr(scaled), evidence.IntPtr(r.TotalPoints)
	}
}

func summary(rep *evidence.Report) string {
	score := fmt.Sprintf("overall score %.2f / %d", rep.OverallScore, evidence.MaxScore)
	if rep.PointsBased() {
		score = fmt.Sprintf("%d / %d points (overall score %.2f / %d)",
			*rep.TotalPoints, *rep.MaxPoints, rep.OverallScore, evidence.MaxScore)
	}
	return fmt.Sprintf("Audit of %s across %d dimensions: %s; %d dimension(s) with dissent.",
		orUnknown(rep.RepoURL), len(rep.Criteria), score, rep.DissentCount())
}

func plan(criteria []evidence.CriterionResult) string {
	var b strings.Builder
	for i, c := range criteria {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s\n%s", c.DimensionName, c.Remediation)
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown repository)"
	}
	return s
}
