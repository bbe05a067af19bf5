package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appmangrove "github.com/zjrosen/mangrove/internal/application/mangrove"
	"github.com/zjrosen/mangrove/internal/config"
	"github.com/zjrosen/mangrove/internal/log"
	"github.com/zjrosen/mangrove/internal/tracing"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	// closeLog closes the debug log opened by setup.
	closeLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "mangrove",
	Short: "A typed, depth-layered variable registry",
	Long: `mangrove keeps named, typed variables at numbered depths, binds them into
position-aligned tuples and expands selector groups into their full product.

Depths and their allowed types come from the config file. Plans (YAML) declare
variables, assignments, migrations, bindings and groups.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { teardown() },
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .mangrove/config.yaml, then ~/.config/mangrove/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "write debug logs to log_path")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("cache.expiration", defaults.Cache.Expiration)
	viper.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("log_path", defaults.LogPath)
	viper.SetDefault("log_level", defaults.LogLevel)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .mangrove/config.yaml (current directory)
		// 2. ~/.config/mangrove/config.yaml (user config)
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			viper.SetConfigFile(config.DefaultConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "mangrove"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if writeErr := config.WriteDefaultConfig(config.DefaultConfigPath); writeErr == nil {
				viper.SetConfigFile(config.DefaultConfigPath)
				_ = viper.ReadInConfig()
			}
		}
	}

	cfg = config.Config{}
	_ = viper.Unmarshal(&cfg)
}

// setup enables logging and validates the loaded config before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	if cfg.Debug || os.Getenv("MANGROVE_DEBUG") != "" {
		cleanup, err := log.Init(cfg.LogPath)
		if err != nil {
			return fmt.Errorf("init debug log: %w", err)
		}
		closeLog = cleanup
		if level, ok := log.ParseLevel(cfg.LogLevel); ok {
			log.SetMinLevel(level)
		}
		log.Info(log.CatConfig, "config loaded", "path", viper.ConfigFileUsed(), "depths", len(cfg.Depths))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// newService builds a registry with the configured depths, tracing and cache.
// The returned cleanup flushes spans and closes the registry.
func newService(ctx context.Context) (*appmangrove.Service, func(), error) {
	provider, err := tracing.NewProvider(cfg.Tracing.Provider())
	if err != nil {
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	svc := appmangrove.NewService(
		appmangrove.WithTracer(provider.Tracer()),
		appmangrove.WithCache(appmangrove.CacheOptions{
			Disabled:        cfg.Cache.Disabled,
			Expiration:      cfg.Cache.Expiration,
			CleanupInterval: cfg.Cache.CleanupInterval,
		}),
	)
	cleanup := func() {
		svc.Close()
		if err := provider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
		}
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	for i, types := range catalog {
		if err := svc.ConfigureDepth(ctx, i+1, types...); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("configure depth %d: %w", i+1, err)
		}
	}
	return svc, cleanup, nil
}

// loadAndApply builds a service and applies the plan at path to it.
func loadAndApply(ctx context.Context, path string) (*appmangrove.Service, *appmangrove.PlanResult, func(), error) {
	plan, err := appmangrove.LoadPlanFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	svc, cleanup, err := newService(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	result, err := appmangrove.ApplyPlan(ctx, svc, plan)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("apply plan: %w", err)
	}
	return svc, result, cleanup, nil
}

// teardown releases what setup opened. PersistentPostRun is skipped when a
// command fails, so Execute calls it too.
func teardown() {
	closeLog()
	closeLog = func() {}
}

// Execute runs the root command
func Execute() error {
	defer teardown()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
