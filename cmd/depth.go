package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/mangrove/internal/config"
)

var depthCmd = &cobra.Command{
	Use:   "depth",
	Short: "Manage configured depths",
}

var depthAddCmd = &cobra.Command{
	Use:   "add TYPE...",
	Short: "Append the next depth to the config file",
	Long: `Append a depth after the last configured one, allowing the given types.
Comments and other sections of the config file are preserved.

Example:
  mangrove depth add int tensor`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.ConfigFileUsed()
		if path == "" {
			path = config.DefaultConfigPath
		}
		depths, err := config.AppendDepth(path, cfg.Depths, args)
		if err != nil {
			return fmt.Errorf("add depth: %w", err)
		}
		cfg.Depths = depths
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "configured depth %d in %s\n", len(depths), path)
		return err
	},
}

func init() {
	depthCmd.AddCommand(depthAddCmd)
	rootCmd.AddCommand(depthCmd)
}
