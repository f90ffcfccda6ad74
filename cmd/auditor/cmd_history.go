package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auditor/internal/evidence"
	"auditor/internal/format"
	"auditor/internal/store"
)

type historyFlags struct {
	limit  int
	format string
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded audits",
	}
	cmd.PersistentFlags().StringVar(&f.format, "format", "ascii", "Table format: ascii, markdown")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent audits, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.Open(g.cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			runs, err := st.ListRuns(cmd.Context(), f.limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audits recorded.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs, format.ParseMode(f.format)))
			return nil
		},
	}
	list.Flags().IntVarP(&f.limit, "limit", "n", 20, "Maximum runs to list (0 for all)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one audit's scores by id or id prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(g.cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			crit, err := st.Criteria(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run      %s\nRepo     %s\nOracle   %s\nRubric   %s\nOverall  %s\nPoints   %s\nDuration %s\n\n",
				run.ID, run.RepoURL, run.Oracle, run.RubricName,
				format.Score(run.OverallScore, evidence.MaxScore), format.Points(run.TotalPoints, run.MaxPoints),
				format.FmtDuration(run.Duration()))
			fmt.Fprintln(out, criteriaTable(crit, format.ParseMode(f.format)))
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func runsTable(runs []*store.Run, m format.Mode) string {
	tb := format.NewTable(m, "ID", "Finished", "Repository", "Oracle", "Overall", "Points", "Degraded").
		AlignRight(5, 6)
	for _, r := range runs {
		tb.Row(shortID(r.ID), r.FinishedAt.Local().Format("2006-01-02 15:04"), format.Cell(r.RepoURL, 48),
			r.Oracle, format.Score(r.OverallScore, evidence.MaxScore), format.Points(r.TotalPoints, r.MaxPoints),
			format.BoolMark(r.Degraded))
	}
	return tb.String()
}

func criteriaTable(crit []store.CriterionScore, m format.Mode) string {
	tb := format.NewTable(m, "#", "Dimension", "Score", "Points", "Dissent").AlignRight(1, 4)
	for _, c := range crit {
		pts := "-"
		if c.Points != nil {
			pts = fmt.Sprint(*c.Points)
		}
		tb.Row(c.Position+1, format.Cell(c.DimensionName, 50), format.ScoreBar(c.FinalScore, evidence.MaxScore), pts, format.BoolMark(c.Dissent))
	}
	return tb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
