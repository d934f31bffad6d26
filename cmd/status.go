/*
Copyright © 2025 The Triage Authors
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psychon7/Triage-AI/internal/ui"
	"github.com/psychon7/Triage-AI/internal/util"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the state of a stored task",
	Long: `Show stage statuses, progress and recent log lines for one task.
A unique prefix of the task ID is enough.

Examples:
  triage status 3f2a9c1e
  triage status 3f2a --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	id, err := util.ResolveTaskID(ctx, store, args[0])
	if err != nil {
		return err
	}
	st, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}

	if isJSON() {
		return printJSON(cmd.OutOrStdout(), st)
	}
	cmd.Print(ui.RenderTaskStatus(st))
	return nil
}
