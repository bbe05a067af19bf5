package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/mangrove/internal/presentation"
)

var applyPlanPath string

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a plan and print the resulting registry",
	Long: `Apply a YAML plan to a fresh registry and print the summary, bindings and
expanded groups as JSON.

Sections run in order: variables, assign, moves, bindings, groups. The first
failing step aborts the run.

Examples:
  mangrove apply -f plan.yaml
  mangrove apply -f plan.yaml | jq '.groups.grid.tuples | length'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, result, cleanup, err := loadAndApply(ctx, applyPlanPath)
		if err != nil {
			return err
		}
		defer cleanup()

		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		return formatter.FormatApply(presentation.FromPlanResult(svc.Summary(ctx), result))
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyPlanPath, "file", "f", "", "plan file (YAML)")
	_ = applyCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(applyCmd)
}
