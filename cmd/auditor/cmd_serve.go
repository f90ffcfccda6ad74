package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"auditor/internal/mcp"
	"auditor/internal/store"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long:  "Serve run_audit, get_report, get_signals and list_runs over the Model Context Protocol on stdio.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st store.Store
			if !g.cfg.NoHistory {
				s, err := store.Open(g.cfg.DBPath)
				if err != nil {
					return err
				}
				defer s.Close()
				st = s
			}
			mcp.Version = version
			srv := mcp.NewServer(g.cfg, st)
			defer srv.Shutdown()
			slog.Info("MCP server starting", "version", version, "history", st != nil)
			return srv.Serve(cmd.Context())
		},
	}
}
