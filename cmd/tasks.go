/*
Copyright © 2025 The Triage Authors
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psychon7/Triage-AI/internal/ui"
)

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored tasks",
	Long: `List every task saved in the data directory, oldest first.

Tasks are saved by 'triage serve', 'triage mcp' and 'triage run'.

Examples:
  triage tasks
  triage tasks --json`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tasks, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if isJSON() {
		return printJSON(cmd.OutOrStdout(), tasks)
	}
	if len(tasks) == 0 {
		cmd.Println("No tasks yet.")
		cmd.Println("Start one with: triage run \"Your problem statement\"")
		return nil
	}
	cmd.Print(ui.RenderTaskList(tasks))
	return nil
}
