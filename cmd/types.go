package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/mangrove/internal/presentation"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List type tags and the types allowed at each depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		dto := presentation.FromCatalog(svc.Depths(), svc.AllowedTypes)
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatTypes(dto)
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
