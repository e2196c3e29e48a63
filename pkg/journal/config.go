package journal

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config is the badger journal's backend-specific configuration, decoded
// from the journal.badger section of the main configuration.
type Config struct {
	// Path is the BadgerDB directory
	Path string `mapstructure:"path"`

	// Interval between persisted snapshots
	Interval time.Duration `mapstructure:"interval"`
}

// ConfigFromMap decodes a raw configuration section into a Config, applying
// defaults and validating the result.
func ConfigFromMap(raw map[string]any) (Config, error) {
	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &cfg,
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to build journal config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode journal config: %w", err)
	}

	if cfg.Path == "" {
		return Config{}, fmt.Errorf("journal config: path is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	return cfg, nil
}
