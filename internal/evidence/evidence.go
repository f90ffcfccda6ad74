// Package evidence holds the shared record types that flow through the audit
// pipeline: Evidence gathered by collectors, Opinions produced by judges, and
// the per-criterion and report-level verdicts assembled at the end.
//
// Records are values. Once a collector or the aggregator creates an Evidence
// it is never mutated; later stages only read and summarize it.
package evidence

import (
	"fmt"
	"strings"
)

// PlaceholderMarker tags the rationale of back-filled Evidence. The
// critical-failure gate ignores any record whose rationale carries it.
const PlaceholderMarker = "[placeholder]"

// UnsafeMarker tags Evidence describing an unsafe execution pattern. The
// security-override rule caps any dimension whose evidence carries it.
const UnsafeMarker = "[unsafe-pattern]"

// AggregatedLocation is the location used for Evidence synthesized by the
// aggregator rather than observed at a concrete path or URL.
const AggregatedLocation = "aggregated"

// Evidence is one factual observation for a rubric dimension.
type Evidence struct {
	Goal       string  `json:"goal"`
	Found      bool    `json:"found"`
	Content    *string `json:"content,omitempty"`
	Location   string  `json:"location"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// Text returns the content excerpt, or "" when none was captured.
func (e Evidence) Text() string {
	if e.Content == nil {
		return ""
	}
	return *e.Content
}

// IsPlaceholder reports whether e was injected by placeholder back-fill.
func (e Evidence) IsPlaceholder() bool {
	return strings.Contains(e.Rationale, PlaceholderMarker)
}

// Validate checks the confidence bound.
func (e Evidence) Validate() error {
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("evidence confidence %.3f out of [0,1]", e.Confidence)
	}
	return nil
}

// Content returns a pointer to s, or nil for the empty string. It keeps
// optional-content construction on one line at call sites.
func Content(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Clamp01 bounds a confidence value to [0,1].
func Clamp01(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// Missing builds the zero-confidence Evidence used when an artifact could not
// be acquired or was not provided.
func Missing(goal, location, rationale string) Evidence {
	return Evidence{
		Goal:       goal,
		Found:      false,
		Location:   location,
		Rationale:  rationale,
		Confidence: 0,
	}
}

// Placeholder builds the back-fill Evidence for a dimension that received no
// evidence from any collector.
func Placeholder(goal string) Evidence {
	return Evidence{
		Goal:       goal,
		Found:      false,
		Location:   "",
		Rationale:  PlaceholderMarker + " no evidence collected for this dimension",
		Confidence: 0,
	}
}

// Truncate shortens s to at most n bytes on a rune boundary, appending an
// ellipsis when it cut anything.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
