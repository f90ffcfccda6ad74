package format

import (
	"fmt"
	"strings"
	"time"
)

// Score renders an overall score as "3.50 / 5".
func Score(v float64, maxScore int) string {
	return fmt.Sprintf("%.2f / %d", v, maxScore)
}

// Points renders "total / max", or "-" when the report is not points based.
func Points(total, maxPts *int) string {
	if total == nil || maxPts == nil {
		return "-"
	}
	return fmt.Sprintf("%d / %d", *total, *maxPts)
}

// ScoreBar renders a 1..maxScore score as filled and empty dots.
func ScoreBar(score, maxScore int) string {
	score = min(max(score, 0), maxScore)
	return strings.Repeat("●", score) + strings.Repeat("○", maxScore-score)
}

// FmtDuration formats a duration as "Xm Ys" or "Ys".
func FmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// Cell flattens multi-line text into one table cell and escapes Markdown
// pipes.
func Cell(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", "/")
	if maxLen > 0 {
		s = Truncate(s, maxLen)
	}
	return s
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
