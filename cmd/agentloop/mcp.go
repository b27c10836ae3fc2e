package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/agentloop/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the agent to an MCP host over stdio",
		Long: `Serve the agent as an MCP server on stdin/stdout. Logs go to stderr
(or logging.file). Register it with a host as a stdio server:

  {"command": "agentloop", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, appOptions{stderrLogs: true, events: true})
			if err != nil {
				return err
			}
			defer a.close()

			a.watchPermissions(ctx)

			var opts []mcp.Option
			if a.memory != nil {
				opts = append(opts, mcp.WithHistory(a.memory))
			}
			srv, err := mcp.NewServer(&mcp.Config{
				Name:    "agentloop",
				Version: version,
				Logger:  a.logger.Underlying().Named("mcp"),
			}, a.orch, a.registry, opts...)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
