package cmd

import (
	"context"
	"errors"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/cr/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients run reviews and query the review history
natively. Configure your client with:

  {
    "mcpServers": {
      "cr": { "command": "cr", "args": ["mcp"] }
    }
  }

Available tools: cr_review_code, cr_review_pr, cr_history,
cr_clear_history`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	err = mcp.NewServer(s, eng, newFetcherFor()).ServeStdio(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
