// Package chief turns the three judges' opinions into final criterion
// verdicts and assembles the audit report. Everything here is deterministic;
// no oracle is consulted.
package chief

import (
	"fmt"
	"sort"
	"strings"

	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

const (
	// SecurityCap bounds the score of any dimension with unsafe evidence.
	SecurityCap = 3
	// VarianceThreshold is the score spread above which dissent is recorded.
	VarianceThreshold = 2
)

// Rule names recorded in a Verdict, in the order they can fire.
const (
	RuleMedian        = "median"
	RuleFunctionality = "functionality_weight"
	RuleSecurity      = "security_override"
	RuleFactSupremacy = "fact_supremacy"
	RuleVariance      = "variance_reevaluation"
)

// Verdict is the reconciled score for one dimension.
type Verdict struct {
	Score   int
	Dissent *string
	// Fired lists the rules that changed or set the score.
	Fired []string
}

// Reconcile applies the synthesis rules to one dimension's opinions. A
// missing persona counts as a neutral score.
func Reconcile(d rubric.Dimension, ops map[evidence.Judge]evidence.Opinion, list []evidence.Evidence) Verdict {
	p := scoreOf(ops, evidence.Prosecutor)
	df := scoreOf(ops, evidence.Defense)
	t := scoreOf(ops, evidence.TechLead)
	unsafe := HasUnsafe(list)

	v := Verdict{Score: median(p, df, t), Fired: []string{RuleMedian}}
	if rubric.IsArchitecture(d.Name) {
		v.Score = t
		v.Fired = append(v.Fired, RuleFunctionality)
	}
	if unsafe && v.Score > SecurityCap {
		v.Score = SecurityCap
		v.Fired = append(v.Fired, RuleSecurity)
	}
	if !HasPositive(list) && df > p {
		if capped := min(v.Score, max(p, t)); capped != v.Score {
			v.Score = capped
			v.Fired = append(v.Fired, RuleFactSupremacy)
		}
	}
	if spread := max(p, df, t) - min(p, df, t); spread > VarianceThreshold {
		v.Score = t
		reason := "Tech Lead's assessment adopted as tie-break"
		if unsafe && v.Score > SecurityCap {
			v.Score = SecurityCap
			reason += ", capped by the security override"
		}
		v.Dissent = evidence.StrPtr(fmt.Sprintf(
			"Prosecutor=%d, Defense=%d, TechLead=%d; spread %d exceeds %d. %s.",
			p, df, t, spread, VarianceThreshold, reason))
		v.Fired = append(v.Fired, RuleVariance)
	}
	v.Score = evidence.ClampScore(v.Score)
	return v
}

func scoreOf(ops map[evidence.Judge]evidence.Opinion, j evidence.Judge) int {
	if o, ok := ops[j]; ok {
		return evidence.ClampScore(o.Score)
	}
	return evidence.NeutralScore
}

func median(a, b, c int) int {
	s := []int{a, b, c}
	sort.Ints(s)
	return s[1]
}

// HasUnsafe reports whether any record carries evidence.UnsafeMarker, the
// tag the repository safety scan puts on real findings. Prose that merely
// mentions a risky call does not count.
func HasUnsafe(list []evidence.Evidence) bool {
	for _, e := range list {
		if strings.Contains(e.Rationale, evidence.UnsafeMarker) || strings.Contains(e.Text(), evidence.UnsafeMarker) {
			return true
		}
	}
	return false
}

// HasPositive reports whether any non-placeholder record supports a
// positive claim.
func HasPositive(list []evidence.Evidence) bool {
	for _, e := range list {
		if e.Found && !e.IsPlaceholder() && (e.Text() != "" || e.Rationale != "") {
			return true
		}
	}
	return false
}
