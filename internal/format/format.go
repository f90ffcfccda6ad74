// Package format renders tables for the audit report and the CLI. Callers
// build a table once and pick ASCII, Markdown or HTML output.
package format

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode is a table output format.
type Mode int

const (
	ASCII    Mode = iota // box-drawn terminal tables
	Markdown             // GitHub-flavoured Markdown
	HTML                 // <table> markup for the HTML export
)

func (m Mode) String() string {
	switch m {
	case Markdown:
		return "markdown"
	case HTML:
		return "html"
	}
	return "ascii"
}

// ParseMode maps a format name to a Mode. Unknown names fall back to ASCII.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown":
		return Markdown
	case "html":
		return HTML
	}
	return ASCII
}

// Table accumulates rows and renders them in its Mode.
type Table struct {
	mode Mode
	w    table.Writer
	cols map[int]table.ColumnConfig
}

// NewTable starts a table with the given header row.
func NewTable(m Mode, header ...string) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	t := &Table{mode: m, w: w, cols: map[int]table.ColumnConfig{}}
	if len(header) > 0 {
		w.AppendHeader(toRow(header))
	}
	return t
}

// Title sets a caption rendered above ASCII tables. Markdown and HTML
// ignore it.
func (t *Table) Title(s string) *Table {
	if t.mode == ASCII {
		t.w.SetTitle(s)
	}
	return t
}

// Row appends one data row; values print with fmt.Sprint.
func (t *Table) Row(vals ...any) { t.w.AppendRow(table.Row(vals)) }

// Footer appends a totals row.
func (t *Table) Footer(vals ...any) { t.w.AppendFooter(table.Row(vals)) }

// AlignRight right-aligns the 1-based columns, typically scores and points.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, n := range cols {
		c := t.col(n)
		c.Align, c.AlignFooter = text.AlignRight, text.AlignRight
		t.cols[n] = c
	}
	return t
}

// Wrap caps the width of a 1-based column; longer cells wrap.
func (t *Table) Wrap(col, width int) *Table {
	c := t.col(col)
	c.WidthMax = width
	t.cols[col] = c
	return t
}

// Len is the number of data rows.
func (t *Table) Len() int { return t.w.Length() }

func (t *Table) String() string {
	cfgs := make([]table.ColumnConfig, 0, len(t.cols))
	for _, c := range t.cols {
		cfgs = append(cfgs, c)
	}
	t.w.SetColumnConfigs(cfgs)
	switch t.mode {
	case Markdown:
		return t.w.RenderMarkdown()
	case HTML:
		return t.w.RenderHTML()
	}
	return t.w.Render()
}

func (t *Table) col(n int) table.ColumnConfig {
	c, ok := t.cols[n]
	if !ok {
		c.Number = n
	}
	return c
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
