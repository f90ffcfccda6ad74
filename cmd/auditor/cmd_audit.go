package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auditor/internal/audit"
)

type auditFlags struct {
	path      string
	doc       string
	rubric    string
	output    string
	noHistory bool
	scores    bool
}

func newAuditCmd(g *globalFlags) *cobra.Command {
	f := &auditFlags{}
	cmd := &cobra.Command{
		Use:   "audit [repo-url]",
		Short: "Audit a repository against a rubric",
		Long: "Clone (or open) a repository, collect evidence for every rubric dimension,\n" +
			"run the three judges and write the reconciled report.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, g, f, args)
		},
	}
	cmd.Flags().StringVar(&f.path, "path", "", "Audit an existing local checkout instead of cloning")
	cmd.Flags().StringVar(&f.doc, "doc", "", "Report document (PDF, Markdown or text) to analyze")
	cmd.Flags().StringVar(&f.rubric, "rubric", "", "Rubric file (YAML or JSON); built-in rubric when empty")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Report path; extension selects .md, .html or .pdf")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "Do not record the run in the history database")
	cmd.Flags().BoolVar(&f.scores, "scores", true, "Print the per-dimension score lines")
	return cmd
}

func runAudit(cmd *cobra.Command, g *globalFlags, f *auditFlags, args []string) error {
	req := audit.Request{
		RepoPath:     f.path,
		DocumentPath: f.doc,
		RubricPath:   f.rubric,
		OutputPath:   f.output,
	}
	if len(args) == 1 {
		req.RepoURL = args[0]
	}
	if req.RepoURL != "" && req.RepoPath != "" {
		return fmt.Errorf("%w: give a repository URL or --path, not both", audit.ErrInvalidInput)
	}

	cfg := g.cfg
	if f.noHistory {
		cfg.NoHistory = true
	}
	res, err := audit.RunAudit(cmd.Context(), cfg, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summaryBox(res.Report, res.ReportPath, res.RunID))
	if f.scores {
		fmt.Fprint(out, scoreLines(res.Report))
	}
	return nil
}
