package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
// Boolean defaults live in setupViper because a zero bool carries no
// "unspecified" signal.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyTracerDefaults(&cfg.Tracer)
	applyJournalDefaults(&cfg.Journal)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalized to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	// Port stays 0 by default: pull mode is opt-in, and 0 means no listener.
	// LogInterval 0 keeps periodic logging off.
	_ = cfg
}

func applyTracerDefaults(cfg *TracerConfig) {
	if cfg.MaxPending == 0 {
		cfg.MaxPending = 4096
	}
	if cfg.MaxPendingAge == 0 {
		cfg.MaxPendingAge = 5 * time.Second
	}
}

func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
}
