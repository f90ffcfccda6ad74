// Package report renders an audit Report. Markdown is the canonical output;
// HTML, PDF and terminal renderings derive from it.
package report

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"auditor/internal/evidence"
	"auditor/internal/format"
)

// ArgumentLimit bounds each judge argument in the rendered report, in bytes.
const ArgumentLimit = 1000

// Markdown renders rep. Every Report field appears once, criteria in rubric
// order.
func Markdown(rep *evidence.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Audit Report: %s\n\n", orUnknown(rep.RepoURL))
	fmt.Fprintf(&b, "**Overall Score:** %s\n", format.Score(rep.OverallScore, evidence.MaxScore))
	fmt.Fprintf(&b, "**Dimensions:** %d\n", len(rep.Criteria))
	if rep.PointsBased() {
		fmt.Fprintf(&b, "**Points:** %s\n", format.Points(rep.TotalPoints, rep.MaxPoints))
	}
	if rep.Degraded {
		b.WriteString("**Status:** degraded (evidence collection failed)\n")
	}

	b.WriteString("\n## Executive Summary\n\n")
	b.WriteString(rep.ExecutiveSummary)
	b.WriteString("\n\n## Scorecard\n\n")
	b.WriteString(scorecard(rep, format.Markdown))

	b.WriteString("\n\n## Criteria\n")
	for i, c := range rep.Criteria {
		writeCriterion(&b, i+1, c)
	}

	b.WriteString("\n## Remediation Plan\n\n")
	b.WriteString(rep.RemediationPlan)
	b.WriteString("\n")
	return b.String()
}

// Scorecard renders the per-criterion summary table in mode m.
func Scorecard(rep *evidence.Report, m format.Mode) string { return scorecard(rep, m) }

func scorecard(rep *evidence.Report, m format.Mode) string {
	points := rep.PointsBased()
	header := []string{"#", "Dimension", "Score", "Dissent"}
	if points {
		header = []string{"#", "Dimension", "Score", "Level", "Points", "Dissent"}
	}
	tb := format.NewTable(m, header...).AlignRight(1, 3)
	if points {
		tb.AlignRight(5)
	}
	for i, c := range rep.Criteria {
		score := fmt.Sprintf("%d / %d", c.FinalScore, evidence.MaxScore)
		if points {
			pts := "-"
			if c.Points != nil {
				pts = strconv.Itoa(*c.Points)
				if c.ExcludedFromTotal {
					pts += " (excluded)"
				}
			}
			tb.Row(i+1, format.Cell(c.DimensionName, 60), score, format.Cell(c.SelectedLevelName, 40), pts, format.BoolMark(c.HasDissent()))
			continue
		}
		tb.Row(i+1, format.Cell(c.DimensionName, 60), score, format.BoolMark(c.HasDissent()))
	}
	return tb.String()
}

func writeCriterion(b *strings.Builder, n int, c evidence.CriterionResult) {
	fmt.Fprintf(b, "\n### %d. %s (`%s`)\n\n", n, c.DimensionName, c.DimensionID)
	fmt.Fprintf(b, "**Final Score:** %d / %d\n", c.FinalScore, evidence.MaxScore)
	if c.Points != nil {
		fmt.Fprintf(b, "**Level:** %s (%d points)", c.SelectedLevelName, *c.Points)
		if c.ExcludedFromTotal {
			b.WriteString(", excluded from total")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n#### Judge Opinions\n\n")
	if len(c.JudgeOpinions) == 0 {
		b.WriteString("_No opinions._\n")
	}
	for _, o := range c.JudgeOpinions {
		fmt.Fprintf(b, "- **%s** (%d/%d): %s\n", o.Judge, o.Score, evidence.MaxScore,
			evidence.Truncate(oneLine(o.Argument), ArgumentLimit))
		if len(o.CitedEvidence) > 0 {
			fmt.Fprintf(b, "  - Cited: %s\n", strings.Join(o.CitedEvidence, "; "))
		}
	}
	if c.DissentSummary != nil {
		fmt.Fprintf(b, "\n**Dissent:** %s\n", *c.DissentSummary)
	}
	fmt.Fprintf(b, "\n**Remediation:** %s\n", oneLine(c.Remediation))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown repository)"
	}
	return s
}

// Summary is what ParseMarkdown recovers from a rendered report.
type Summary struct {
	RepoURL      string
	OverallScore float64
	Dimensions   int
	Degraded     bool
}

// ErrNotReport is returned when text lacks the report header lines.
var ErrNotReport = errors.New("report: not an audit report")

var (
	titleLine   = regexp.MustCompile(`(?m)^# Audit Report: (.+)$`)
	overallLine = regexp.MustCompile(`(?m)^\*\*Overall Score:\*\* ([0-9]+(?:\.[0-9]+)?) / [0-9]+$`)
	dimsLine    = regexp.MustCompile(`(?m)^\*\*Dimensions:\*\* ([0-9]+)$`)
	statusLine  = regexp.MustCompile(`(?m)^\*\*Status:\*\* degraded`)
)

// ParseMarkdown re-extracts the headline figures from a rendered report.
func ParseMarkdown(text string) (Summary, error) {
	o := overallLine.FindStringSubmatch(text)
	d := dimsLine.FindStringSubmatch(text)
	if o == nil || d == nil {
		return Summary{}, ErrNotReport
	}
	var s Summary
	var err error
	if s.OverallScore, err = strconv.ParseFloat(o[1], 64); err != nil {
		return Summary{}, fmt.Errorf("%w: overall score: %v", ErrNotReport, err)
	}
	if s.Dimensions, err = strconv.Atoi(d[1]); err != nil {
		return Summary{}, fmt.Errorf("%w: dimensions: %v", ErrNotReport, err)
	}
	if t := titleLine.FindStringSubmatch(text); t != nil {
		s.RepoURL = strings.TrimSpace(t[1])
	}
	s.Degraded = statusLine.MatchString(text)
	return s, nil
}
