package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"auditor/internal/evidence"
	"auditor/internal/format"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// scoreStyle colors a 1..5 score: red below 3, yellow at 3, green above.
func scoreStyle(score float64) lipgloss.Style {
	c := "#3FB950"
	switch {
	case score < 3:
		c = "#FF6B6B"
	case score < 3.5:
		c = "#D29922"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c))
}

// summaryBox renders the headline of a finished audit.
func summaryBox(rep *evidence.Report, reportPath, runID string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Audit: "+rep.RepoURL) + "\n")
	fmt.Fprintf(&b, "Overall  %s\n", scoreStyle(rep.OverallScore).Render(format.Score(rep.OverallScore, evidence.MaxScore)))
	if rep.PointsBased() {
		fmt.Fprintf(&b, "Points   %s\n", format.Points(rep.TotalPoints, rep.MaxPoints))
	}
	fmt.Fprintf(&b, "Dissent  %d of %d dimensions\n", rep.DissentCount(), len(rep.Criteria))
	if rep.Degraded {
		b.WriteString(warnStyle.Render("Degraded: repository unavailable, judges skipped") + "\n")
	}
	if runID != "" {
		b.WriteString(dimStyle.Render("Run     "+runID) + "\n")
	}
	b.WriteString(dimStyle.Render("Report  " + reportPath))
	return boxStyle.Render(b.String())
}

// scoreLines lists each criterion with a dot bar.
func scoreLines(rep *evidence.Report) string {
	var b strings.Builder
	for _, c := range rep.Criteria {
		mark := " "
		if c.HasDissent() {
			mark = warnStyle.Render("!")
		}
		fmt.Fprintf(&b, "%s %s %s\n", scoreStyle(float64(c.FinalScore)).Render(format.ScoreBar(c.FinalScore, evidence.MaxScore)),
			mark, format.Truncate(c.DimensionName, 60))
	}
	return b.String()
}
