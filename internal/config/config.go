// Package config provides configuration types and defaults for mangrove.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/mangrove/internal/cachemanager"
	"github.com/zjrosen/mangrove/internal/domain/mangrove"
	"github.com/zjrosen/mangrove/internal/log"
	"github.com/zjrosen/mangrove/internal/tracing"
)

// DefaultConfigPath is where a default config is written when none is found.
const DefaultConfigPath = ".mangrove/config.yaml"

// DepthConfig declares the allowed types of one depth.
type DepthConfig struct {
	Depth int      `mapstructure:"depth" yaml:"depth"`
	Types []string `mapstructure:"types" yaml:"types"`
}

// CacheConfig controls the group expansion cache.
type CacheConfig struct {
	Disabled        bool          `mapstructure:"disabled"`
	Expiration      time.Duration `mapstructure:"expiration"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	// Enabled controls whether spans are recorded. Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter is one of "none", "file", "stdout", "otlp". Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the JSONL output for the file exporter.
	// Default: ~/.config/mangrove/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate is between 0.0 and 1.0; 0 samples nothing. Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Config holds all configuration options for mangrove.
type Config struct {
	Depths   []DepthConfig `mapstructure:"depths"`
	Cache    CacheConfig   `mapstructure:"cache"`
	Tracing  TracingConfig `mapstructure:"tracing"`
	Debug    bool          `mapstructure:"debug"`
	LogPath  string        `mapstructure:"log_path"`
	LogLevel string        `mapstructure:"log_level"` // minimum level when debug logging is on
}

// Provider converts the tracing section for tracing.NewProvider.
func (t TracingConfig) Provider() tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.Enabled = t.Enabled
	if t.Exporter != "" {
		cfg.Exporter = t.Exporter
	}
	cfg.FilePath = t.FilePath
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultTracesFilePath()
	}
	if t.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = t.OTLPEndpoint
	}
	cfg.SampleRate = t.SampleRate
	return cfg
}

// DefaultTracesFilePath returns ~/.config/mangrove/traces/traces.jsonl, or ""
// when the home directory is unknown.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mangrove", "traces", "traces.jsonl")
}

// Catalog parses the depth declarations into tag lists keyed by depth, in
// declaration order. Validation happens in ValidateDepths.
func (c Config) Catalog() ([][]mangrove.TypeTag, error) {
	out := make([][]mangrove.TypeTag, 0, len(c.Depths))
	for _, d := range c.Depths {
		tags := make([]mangrove.TypeTag, 0, len(d.Types))
		for _, name := range d.Types {
			tag, err := mangrove.ParseTypeTag(name)
			if err != nil {
				return nil, fmt.Errorf("depths[%d]: %w", d.Depth, err)
			}
			tags = append(tags, tag)
		}
		out = append(out, tags)
	}
	return out, nil
}

// ValidateDepths checks that depths start at 1, have no gaps, and name known types.
func ValidateDepths(depths []DepthConfig) error {
	for i, d := range depths {
		if d.Depth != i+1 {
			return fmt.Errorf("depths[%d]: expected depth %d, got %d", i, i+1, d.Depth)
		}
		if len(d.Types) == 0 {
			return fmt.Errorf("depths[%d]: at least one type is required", i)
		}
		for _, name := range d.Types {
			if _, err := mangrove.ParseTypeTag(name); err != nil {
				return fmt.Errorf("depths[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// ValidateCache rejects negative durations.
func ValidateCache(cache CacheConfig) error {
	if cache.Expiration < 0 {
		return fmt.Errorf("cache.expiration must not be negative, got %s", cache.Expiration)
	}
	if cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative, got %s", cache.CleanupInterval)
	}
	return nil
}

// ValidateTracing checks tracing configuration. Empty values use defaults.
func ValidateTracing(t TracingConfig) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	switch t.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}

	if t.Enabled && t.Exporter == tracing.ExporterOTLP && t.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// Validate runs every section validator.
func (c Config) Validate() error {
	if err := ValidateDepths(c.Depths); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, ok := log.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
		}
	}
	if err := ValidateCache(c.Cache); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Depths: []DepthConfig{},
		Cache: CacheConfig{
			Expiration:      cachemanager.DefaultExpiration,
			CleanupInterval: cachemanager.DefaultCleanupInterval,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     tracing.ExporterFile,
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		LogPath:  "debug.log",
		LogLevel: "debug",
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Mangrove Configuration

# Depths are configured in order starting at 1. Depth 0 is built in and
# always allows int, float, str, bool, tensor and opaque.
# Type names: int, float, str, bool, list, dict, tensor, opaque
depths:
  - depth: 1
    types: [int, float, tensor]
  - depth: 2
    types: [str, list]

# Group expansion cache
cache:
  expiration: 10m
  cleanup_interval: 30m
  # disabled: true   # recompute every expansion

# OpenTelemetry tracing for registry operations
tracing:
  enabled: false
  exporter: file                 # none, file, stdout, otlp
  # file_path: ~/.config/mangrove/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

# Debug logging (also enabled by MANGROVE_DEBUG=1)
debug: false
log_path: debug.log
log_level: debug                 # debug, info, warn, error
`
}

// WriteDefaultConfig creates a config file at configPath with default settings.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
