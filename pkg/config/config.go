package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete padlatency configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (PADLATENCY_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics controls the snapshot exporter
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracer controls which pushes are measured and the in-flight bounds
	Tracer TracerConfig `mapstructure:"tracer"`

	// Journal selects the optional snapshot journal backend
	Journal JournalConfig `mapstructure:"journal"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output. TRACE additionally emits
	// per-dropped-sample diagnostics and is only meant for debugging.
	Level string `mapstructure:"level" validate:"required,oneof=TRACE DEBUG INFO WARN ERROR trace debug info warn error"`

	// Format specifies the log output format
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// MetricsConfig controls the snapshot exporter.
type MetricsConfig struct {
	// Port for the pull listener. 0 disables pull mode; the on-demand query
	// is always available.
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`

	// LogInterval enables periodic logging of an aggregate summary when
	// greater than zero.
	LogInterval time.Duration `mapstructure:"log_interval" validate:"gte=0"`
}

// TracerConfig gates which hook registrations are active and bounds the
// in-flight transit table.
type TracerConfig struct {
	// Buffers enables measurement of single-buffer pushes
	Buffers bool `mapstructure:"buffers"`

	// BufferLists enables measurement of buffer-list pushes
	BufferLists bool `mapstructure:"buffer_lists"`

	// MaxPending bounds the number of in-flight begin records
	MaxPending int `mapstructure:"max_pending" validate:"gte=0"`

	// MaxPendingAge is how long a begin record may wait for its end event
	MaxPendingAge time.Duration `mapstructure:"max_pending_age" validate:"gte=0"`
}

// JournalConfig selects the snapshot journal backend.
//
// The Type field determines which backend is used; only the matching
// type-specific section is read.
type JournalConfig struct {
	// Type specifies the journal backend. Valid values: none, badger
	Type string `mapstructure:"type" validate:"required,oneof=none badger"`

	// Badger contains BadgerDB-specific configuration.
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns the loaded and validated configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the PADLATENCY_ prefix and underscores.
	// Example: PADLATENCY_METRICS_PORT=9464
	v.SetEnvPrefix("PADLATENCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot go through ApplyDefaults (an explicit false is
	// indistinguishable from a zero value there), so they default here.
	v.SetDefault("tracer.buffers", true)
	v.SetDefault("tracer.buffer_lists", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file is
// acceptable; defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path, preferring
// XDG_CONFIG_HOME, then ~/.config, then the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "padlatency")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "padlatency")
}
