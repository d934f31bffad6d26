/*
Copyright © 2025 The Triage Authors
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	triagemcp "github.com/psychon7/Triage-AI/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI tool integration",
	Long: `Start a Model Context Protocol server on stdio so AI assistants can
submit problems, review stage outputs and approve or reject them.

Tools: triage_submit, triage_status, triage_stage_output, triage_decide,
triage_pause, triage_resume, triage_result.

The server runs until the client disconnects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServer(ctx context.Context) error {
	// stdout carries JSON-RPC; everything else goes to stderr.
	fmt.Fprintln(os.Stderr, "Triage MCP server starting...")

	log, err := newLogger()
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, appConfig, log, runtimeOptions{restore: true})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			log.Warn("pipeline shutdown", "error", err)
		}
	}()

	return triagemcp.Run(ctx, triagemcp.NewServer(rt.gateway, version, log))
}
