package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/zjrosen/mangrove/internal/domain/mangrove"
	"github.com/zjrosen/mangrove/internal/presentation"
)

var (
	queryPlanPath string
	queryDepth    int
	queryType     string
	queryValues   bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Apply a plan and list variables by depth and/or type",
	Long: `Apply a YAML plan, then print the names of the variables matching the
filters in registration order. With --values the matching values are printed too.

Examples:
  # Every variable at depth 1
  mangrove query -f plan.yaml --depth 1

  # Tensors anywhere, with their values
  mangrove query -f plan.yaml --type tensor --values`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var q domain.Query
		if cmd.Flags().Changed("depth") {
			q = q.AtDepth(queryDepth)
		}
		if queryType != "" {
			tag, err := domain.ParseTypeTag(queryType)
			if err != nil {
				return err
			}
			q = q.OfType(tag)
		}

		ctx := cmd.Context()
		svc, _, cleanup, err := loadAndApply(ctx, queryPlanPath)
		if err != nil {
			return err
		}
		defer cleanup()

		result := presentation.QueryResultDTO{Names: svc.VariablesMatching(ctx, q)}
		if queryValues {
			result.Values = presentation.FromValues(svc.ValuesMatching(ctx, q))
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatQuery(result)
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryPlanPath, "file", "f", "", "plan file (YAML)")
	queryCmd.Flags().IntVarP(&queryDepth, "depth", "d", 0, "only variables at this depth")
	queryCmd.Flags().StringVarP(&queryType, "type", "t", "", "only variables of this type (e.g. int, tensor)")
	queryCmd.Flags().BoolVar(&queryValues, "values", false, "include values")
	_ = queryCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(queryCmd)
}
