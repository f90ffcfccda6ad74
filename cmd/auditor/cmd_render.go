package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"auditor/internal/evidence"
	"auditor/internal/report"
	"auditor/internal/store"
)

type renderFlags struct {
	format string
	output string
	width  int
}

var errRenderFormat = errors.New("unsupported render format")

func newRenderCmd(g *globalFlags) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render [run-id | report.md]",
		Short: "Render a stored audit report",
		Long: "Render a report from the history database (latest run when no id is given)\n" +
			"as Markdown, HTML, PDF or styled terminal output. A Markdown report file can\n" +
			"be rendered to the terminal directly.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, g, f, args)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", "term", "Output format: md, html, pdf, term")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file (required for pdf)")
	cmd.Flags().IntVar(&f.width, "width", 100, "Wrap width for terminal output")
	return cmd
}

func runRender(cmd *cobra.Command, g *globalFlags, f *renderFlags, args []string) error {
	format := strings.ToLower(f.format)
	out := cmd.OutOrStdout()

	if len(args) == 1 && isMarkdownFile(args[0]) {
		if format != "term" {
			return fmt.Errorf("%w: a Markdown file renders to term only", errRenderFormat)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read report: %w", err)
		}
		s, err := report.RenderMarkdownTerminal(string(data), f.width)
		if err != nil {
			return err
		}
		fmt.Fprint(out, s)
		return nil
	}

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	rep, err := loadReport(cmd.Context(), g.cfg.DBPath, id)
	if err != nil {
		return err
	}

	switch format {
	case "term":
		s, err := report.RenderTerminal(rep, f.width)
		if err != nil {
			return err
		}
		fmt.Fprint(out, s)
		return nil
	case "md", "markdown":
		if f.output == "" {
			fmt.Fprint(out, report.Markdown(rep))
			return nil
		}
		return writeAs(cmd.Context(), rep, f.output, ".md")
	case "html":
		if f.output == "" {
			html, err := report.RenderHTML(rep)
			if err != nil {
				return err
			}
			_, err = out.Write(html)
			return err
		}
		return writeAs(cmd.Context(), rep, f.output, ".html")
	case "pdf":
		if f.output == "" {
			return fmt.Errorf("%w: pdf needs --output", errRenderFormat)
		}
		return writeAs(cmd.Context(), rep, f.output, ".pdf")
	default:
		return fmt.Errorf("%w: %q", errRenderFormat, f.format)
	}
}

// writeAs writes rep to path, forcing ext when the path has a different one.
func writeAs(ctx context.Context, rep *evidence.Report, path, ext string) error {
	if !strings.EqualFold(filepath.Ext(path), ext) {
		path += ext
	}
	return report.Write(ctx, rep, path)
}

func isMarkdownFile(arg string) bool {
	ext := strings.ToLower(filepath.Ext(arg))
	if ext != ".md" && ext != ".markdown" {
		return false
	}
	_, err := os.Stat(arg)
	return err == nil
}

// loadReport returns the report of run id, or of the newest run when id is
// empty.
func loadReport(ctx context.Context, dbPath, id string) (*evidence.Report, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if id == "" {
		runs, err := st.ListRuns(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("no audits recorded in %s", dbPath)
		}
		id = runs[0].ID
	}
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Report == nil {
		return nil, fmt.Errorf("run %s has no stored report", run.ID)
	}
	return run.Report, nil
}
