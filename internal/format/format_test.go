package format_test

import (
	"strings"
	"testing"
	"time"

	"auditor/internal/format"
)

func criteriaTable(m format.Mode) string {
	tb := format.NewTable(m, "Dimension", "Score", "Dissent")
	tb.Row("Graph Orchestration", 4, format.BoolMark(false))
	tb.Row("Safe Tool Engineering", 3, format.BoolMark(true))
	tb.Footer("Overall", format.Score(3.5, 5), "")
	return tb.String()
}

func TestASCII_CriteriaTable(t *testing.T) {
	out := criteriaTable(format.ASCII)
	for _, want := range []string{"DIMENSION", "Graph Orchestration", "3.50 / 5", "───"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestMarkdown_CriteriaTable(t *testing.T) {
	out := criteriaTable(format.Markdown)
	if !strings.Contains(out, "| Dimension") || !strings.Contains(out, "---") {
		t.Errorf("expected markdown header and separator:\n%s", out)
	}
	if !strings.Contains(out, "Safe Tool Engineering") || !strings.Contains(out, "Overall") {
		t.Errorf("expected rows and footer:\n%s", out)
	}
}

func TestHTML_CriteriaTable(t *testing.T) {
	out := criteriaTable(format.HTML)
	if !strings.Contains(out, "<table") || !strings.Contains(out, "Graph Orchestration") {
		t.Errorf("expected html table:\n%s", out)
	}
}

func TestTable_AlignWrapTitle(t *testing.T) {
	tb := format.NewTable(format.ASCII, "Run", "Score").Title("History").AlignRight(2).Wrap(1, 8)
	tb.Row("b1f0", 4.25)
	tb.Row("c2a1", 3)
	if tb.Len() != 2 {
		t.Errorf("Len = %d, want 2", tb.Len())
	}
	out := tb.String()
	for _, want := range []string{"4.25", "History"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTable_MarkdownIgnoresTitle(t *testing.T) {
	out := format.NewTable(format.Markdown, "A").Title("History").String()
	if strings.Contains(out, "History") {
		t.Errorf("markdown table should not carry a title:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]format.Mode{"md": format.Markdown, " Markdown": format.Markdown, "HTML": format.HTML, "term": format.ASCII, "": format.ASCII}
	for in, want := range tests {
		if got := format.ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
	if format.Markdown.String() != "markdown" {
		t.Errorf("Mode.String = %q", format.Markdown.String())
	}
}

func TestScoreAndPoints(t *testing.T) {
	if got := format.Score(4, 5); got != "4.00 / 5" {
		t.Errorf("Score = %q", got)
	}
	total, maxPts := 31, 40
	if got := format.Points(&total, &maxPts); got != "31 / 40" {
		t.Errorf("Points = %q", got)
	}
	if got := format.Points(nil, &maxPts); got != "-" {
		t.Errorf("Points(nil) = %q", got)
	}
}

func TestScoreBar(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{3, "●●●○○"},
		{5, "●●●●●"},
		{0, "○○○○○"},
		{9, "●●●●●"},
	}
	for _, tc := range tests {
		if got := format.ScoreBar(tc.score, 5); got != tc.want {
			t.Errorf("ScoreBar(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{90 * time.Second, "1m 30s"},
	}
	for _, tc := range tests {
		if got := format.FmtDuration(tc.in); got != tc.want {
			t.Errorf("FmtDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateAndCell(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tc := range tests {
		if got := format.Truncate(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
	if got := format.Cell("a | b\n  c", 0); got != "a / b c" {
		t.Errorf("Cell = %q", got)
	}
}
