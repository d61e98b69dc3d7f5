package main

import (
	"github.com/spf13/cobra"

	"github.com/feichai0017/testcase-generator/internal/agent/parser"
	"github.com/feichai0017/testcase-generator/internal/mcp"
	"github.com/feichai0017/testcase-generator/internal/service/testcase"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the generate and parse tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			pipeline, err := testcase.NewPipelineFromConfig(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return mcp.NewServer(pipeline, parser.NewResponseParser(log.Named("parser")), log.Named("mcp")).ServeStdio()
		},
	}
}
