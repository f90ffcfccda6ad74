// auditor audits a repository, and optionally its report document, against
// a rubric with three judges and a deterministic chief justice.
//
// Usage:
//
//	auditor audit <repo-url> [--doc report.pdf] [--rubric rubric.yaml] [-o out.md]
//	auditor audit --path ./checkout
//	auditor render <run-id|report.md> --format md|html|pdf|term [-o file]
//	auditor history list | history show <run-id>
//	auditor serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"auditor/internal/config"
	"auditor/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	oracle     string
	dbPath     string

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "auditor",
		Short: "Rubric-driven repository audits with adversarial judges",
		Long: "Auditor collects evidence from a repository and its report, has a prosecutor,\n" +
			"a defense and a tech lead score every rubric dimension, and reconciles their\n" +
			"opinions into one report with deterministic rules.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "Config file (YAML or JSON)")
	f.StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")
	f.StringVar(&g.oracle, "oracle", "", "Scoring oracle backend (basic, genai, file); overrides config")
	f.StringVar(&g.dbPath, "db", "", "Audit history database; overrides config")

	root.AddCommand(newAuditCmd(g), newRenderCmd(g), newHistoryCmd(g), newServeCmd(g))
	return root
}

func (g *globalFlags) setup(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(g.logLevel)
	if err != nil {
		return err
	}
	logging.Init(level, g.logFormat, cmd.ErrOrStderr())

	cfg, err := config.Resolve(g.configPath)
	if err != nil {
		return err
	}
	if g.oracle != "" {
		cfg.Oracle = g.oracle
	}
	if g.dbPath != "" {
		cfg.DBPath = g.dbPath
	}
	g.cfg = cfg
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
