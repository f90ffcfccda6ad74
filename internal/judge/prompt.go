package judge

import (
	"fmt"
	"strings"

	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

const (
	// SummaryItems bounds the evidence records quoted to an oracle.
	SummaryItems = 15
	// SummaryContent bounds each quoted content excerpt, in bytes.
	SummaryContent = 500

	noEvidence = "(no evidence)"
)

// Synthesis rule names the prompt hints draw on.
const (
	RuleSecurity      = "security_override"
	RuleFactSupremacy = "fact_supremacy"
	RuleFunctionality = "functionality_weight"
	RuleDissent       = "dissent_requirement"
)

// SummarizeEvidence renders at most SummaryItems records, one per line.
func SummarizeEvidence(list []evidence.Evidence) string {
	if len(list) == 0 {
		return noEvidence
	}
	var b strings.Builder
	for i, e := range list {
		if i == SummaryItems {
			fmt.Fprintf(&b, "... %d more record(s) omitted\n", len(list)-SummaryItems)
			break
		}
		fmt.Fprintf(&b, "[%d] goal=%s; found=%t; location=%s; rationale=%s; confidence=%.2f",
			i+1, e.Goal, e.Found, e.Location, e.Rationale, e.Confidence)
		if t := e.Text(); t != "" {
			fmt.Fprintf(&b, "; content=%s", evidence.Truncate(t, SummaryContent))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// RuleHints returns the synthesis-rule text relevant to d. Rules missing
// from the rubric are omitted.
func RuleHints(r *rubric.Rubric, d rubric.Dimension) []string {
	names := []string{RuleFactSupremacy}
	if rubric.IsSecurity(d) {
		names = append(names, RuleSecurity)
	}
	if rubric.IsArchitecture(d.Name) {
		names = append(names, RuleFunctionality)
	}
	names = append(names, RuleDissent)

	var out []string
	for _, n := range names {
		if text, ok := r.Rule(n); ok && strings.TrimSpace(text) != "" {
			out = append(out, n+": "+strings.TrimSpace(text))
		}
	}
	return out
}

// BuildPrompt assembles the per-dimension prompt.
func BuildPrompt(d rubric.Dimension, hints []string, list []evidence.Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Criterion: %s (%s)\n", d.ID, d.DisplayName())
	fmt.Fprintf(&b, "Forensic instruction: %s\n", d.ForensicInstruction)
	fmt.Fprintf(&b, "Success pattern: %s\n", d.SuccessPattern)
	fmt.Fprintf(&b, "Failure pattern: %s\n", d.FailurePattern)
	if d.JudicialLogic != "" {
		fmt.Fprintf(&b, "Judicial logic: %s\n", d.JudicialLogic)
	}
	if d.IsPointsBased() {
		b.WriteString("Levels (best first):\n")
		for _, l := range d.Levels {
			fmt.Fprintf(&b, "- %s (%d points): %s\n", l.Name, l.Points, l.Description)
		}
	}
	if len(hints) > 0 {
		b.WriteString("Rules:\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	fmt.Fprintf(&b, "\nEvidence collected:\n%s\n\n", SummarizeEvidence(list))
	b.WriteString("Provide your opinion: score (1-5), argument, cited_evidence.")
	return b.String()
}
