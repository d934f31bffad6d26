/*
Copyright © 2025 The Triage Authors
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/psychon7/Triage-AI/internal/pipeline"
	"github.com/psychon7/Triage-AI/internal/ui"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Describe the pipeline stages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := pipeline.Describe()
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), infos)
		}
		cmd.Print(ui.RenderStages(infos))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}
