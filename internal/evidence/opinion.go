package evidence

import (
	"fmt"
	"sort"
)

// Judge identifies one of the three fixed scoring personas.
type Judge string

const (
	Prosecutor Judge = "Prosecutor" // adversarial, skeptical
	Defense    Judge = "Defense"    // lenient, rewards effort and intent
	TechLead   Judge = "TechLead"   // pragmatic, maintainability first
)

// Judges lists the personas in their canonical order.
func Judges() []Judge {
	return []Judge{Prosecutor, Defense, TechLead}
}

// Valid reports whether j is one of the fixed personas.
func (j Judge) Valid() bool {
	switch j {
	case Prosecutor, Defense, TechLead:
		return true
	}
	return false
}

// Score bounds.
const (
	MinScore     = 1
	MaxScore     = 5
	NeutralScore = 3
)

// ClampScore bounds s to [MinScore, MaxScore].
func ClampScore(s int) int {
	switch {
	case s < MinScore:
		return MinScore
	case s > MaxScore:
		return MaxScore
	default:
		return s
	}
}

// Opinion is one persona's score for one dimension.
type Opinion struct {
	Judge         Judge    `json:"judge"`
	CriterionID   string   `json:"criterion_id"`
	Score         int      `json:"score"`
	Argument      string   `json:"argument"`
	CitedEvidence []string `json:"cited_evidence"`
}

// Validate enforces the opinion contract.
func (o Opinion) Validate() error {
	if !o.Judge.Valid() {
		return fmt.Errorf("unknown judge %q", o.Judge)
	}
	if o.CriterionID == "" {
		return fmt.Errorf("opinion has empty criterion id")
	}
	if o.Score < MinScore || o.Score > MaxScore {
		return fmt.Errorf("opinion score %d out of [%d,%d]", o.Score, MinScore, MaxScore)
	}
	return nil
}

// ConcatOpinions is the reducer for the opinion channel: plain list
// concatenation into a fresh slice.
func ConcatOpinions(a, b []Opinion) []Opinion {
	out := make([]Opinion, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// ByCriterion groups opinions by criterion id and, within each group, by
// judge. When a judge appears twice for one criterion the later record wins.
func ByCriterion(ops []Opinion) map[string]map[Judge]Opinion {
	out := make(map[string]map[Judge]Opinion)
	for _, o := range ops {
		g, ok := out[o.CriterionID]
		if !ok {
			g = make(map[Judge]Opinion, 3)
			out[o.CriterionID] = g
		}
		g[o.Judge] = o
	}
	return out
}

// CountByCriterion returns how many opinions each criterion received.
func CountByCriterion(ops []Opinion) map[string]int {
	out := make(map[string]int)
	for _, o := range ops {
		out[o.CriterionID]++
	}
	return out
}

// SortOpinions orders opinions by criterion id, then by canonical judge order.
// Used where output must not depend on branch completion order.
func SortOpinions(ops []Opinion) {
	rank := map[Judge]int{Prosecutor: 0, Defense: 1, TechLead: 2}
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].CriterionID != ops[j].CriterionID {
			return ops[i].CriterionID < ops[j].CriterionID
		}
		return rank[ops[i].Judge] < rank[ops[j].Judge]
	})
}
