// Package oracle provides scoring and vision backends for the judge bench:
// a deterministic heuristic, Gemini through google.golang.org/genai, and a
// file transport for external agents.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"auditor/internal/evidence"
	"auditor/internal/judge"
)

// Basic scores from the evidence records alone, without a model. It is the
// zero-credential baseline: a shared evidence-strength estimate shifted by a
// fixed persona bias.
type Basic struct{}

// Name returns the backend identifier.
func (Basic) Name() string { return "basic" }

// Score implements judge.Oracle.
func (Basic) Score(_ context.Context, req judge.Request) (judge.Verdict, error) {
	s := assess(req.Evidence)
	score := bias(req.Judge, s.base)
	return judge.Verdict{
		Score:         score,
		Argument:      argument(req.Judge, req.Dimension.DisplayName(), s, score),
		CitedEvidence: s.cited,
	}, nil
}

type strength struct {
	base    int
	found   int
	missing int
	unsafe  bool
	cited   []string
}

// maxCited caps the evidence locations a heuristic verdict cites.
const maxCited = 3

func assess(list []evidence.Evidence) strength {
	s := strength{cited: []string{}}
	best := 0.0
	seen := map[string]bool{}
	for _, e := range list {
		if e.IsPlaceholder() {
			continue
		}
		if strings.Contains(e.Rationale, evidence.UnsafeMarker) || strings.Contains(e.Text(), evidence.UnsafeMarker) {
			s.unsafe = true
		}
		if !e.Found {
			s.missing++
			continue
		}
		s.found++
		best = max(best, e.Confidence)
		if e.Location != "" && !seen[e.Location] && len(s.cited) < maxCited {
			seen[e.Location] = true
			s.cited = append(s.cited, e.Location)
		}
	}

	switch {
	case s.found > 0 && best >= 0.7 && s.missing == 0:
		s.base = 4
	case s.found > 0 && best >= 0.7:
		s.base = 3
	case s.found > 0:
		s.base = 2
	default:
		s.base = 1
	}
	if s.unsafe {
		s.base = min(s.base, 2)
	}
	return s
}

func bias(j evidence.Judge, base int) int {
	switch j {
	case evidence.Prosecutor:
		return evidence.ClampScore(base - 1)
	case evidence.Defense:
		return evidence.ClampScore(base + 1)
	case evidence.TechLead:
		switch {
		case base >= 4:
			return 5
		case base >= 2:
			return 3
		default:
			return 1
		}
	}
	return evidence.ClampScore(base)
}

func argument(j evidence.Judge, name string, s strength, score int) string {
	facts := fmt.Sprintf("%d supporting and %d missing evidence record(s)", s.found, s.missing)
	if s.unsafe {
		facts += ", including unsafe execution patterns"
	}
	switch j {
	case evidence.Prosecutor:
		return fmt.Sprintf("%s: %s. Anything not proven is treated as absent; score %d.", name, facts, score)
	case evidence.Defense:
		return fmt.Sprintf("%s: %s. The work shows intent and partial progress; score %d.", name, facts, score)
	default:
		advice := "Keep the current design and extend its tests."
		if s.found == 0 || s.missing > 0 {
			advice = "Close the gaps the missing evidence points to before adding features."
		}
		if s.unsafe {
			advice = "Replace raw shell execution with argument lists and sandboxed working directories."
		}
		return fmt.Sprintf("%s: %s. %s Score %d.", name, facts, advice, score)
	}
}
