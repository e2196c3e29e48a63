package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "INFO"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if !cfg.Tracer.Buffers || !cfg.Tracer.BufferLists {
		t.Errorf("Expected buffer and buffer-list measurement enabled by default")
	}
	if cfg.Tracer.MaxPending != 4096 {
		t.Errorf("Expected default max_pending 4096, got %d", cfg.Tracer.MaxPending)
	}
	if cfg.Tracer.MaxPendingAge != 5*time.Second {
		t.Errorf("Expected default max_pending_age 5s, got %v", cfg.Tracer.MaxPendingAge)
	}
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected pull mode disabled by default, got port %d", cfg.Metrics.Port)
	}
	if cfg.Journal.Type != "none" {
		t.Errorf("Expected default journal type 'none', got %q", cfg.Journal.Type)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "debug"
  format: "json"
  output: "stderr"

metrics:
  port: 9464
  log_interval: "30s"

tracer:
  buffers: true
  buffer_lists: false
  max_pending: 1024
  max_pending_age: "2s"

journal:
  type: "badger"
  badger:
    path: "/var/lib/padlatency"
    interval: "1m"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Level is normalized to uppercase
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Metrics.Port != 9464 {
		t.Errorf("Expected port 9464, got %d", cfg.Metrics.Port)
	}
	if cfg.Metrics.LogInterval != 30*time.Second {
		t.Errorf("Expected log_interval 30s, got %v", cfg.Metrics.LogInterval)
	}
	if cfg.Tracer.BufferLists {
		t.Errorf("Expected buffer_lists disabled")
	}
	if cfg.Tracer.MaxPending != 1024 {
		t.Errorf("Expected max_pending 1024, got %d", cfg.Tracer.MaxPending)
	}
	if cfg.Journal.Type != "badger" {
		t.Errorf("Expected journal type 'badger', got %q", cfg.Journal.Type)
	}
	if cfg.Journal.Badger["path"] != "/var/lib/padlatency" {
		t.Errorf("Expected badger path in raw section, got %v", cfg.Journal.Badger)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Point the default search path at an empty directory so a developer's
	// real config cannot leak into the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults with no config file, got error: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	configPath := writeConfig(t, `
metrics:
  port: 9464
`)
	t.Setenv("PADLATENCY_METRICS_PORT", "9999")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Metrics.Port != 9999 {
		t.Errorf("Expected env override port 9999, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name: "InvalidLogLevel",
			content: `
logging:
  level: "LOUD"
`,
		},
		{
			name: "PortOutOfRange",
			content: `
metrics:
  port: 70000
`,
		},
		{
			name: "NothingMeasured",
			content: `
tracer:
  buffers: false
  buffer_lists: false
`,
		},
		{
			name: "BadgerWithoutSection",
			content: `
journal:
  type: "badger"
`,
		},
		{
			name: "UnknownJournalType",
			content: `
journal:
  type: "postgres"
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			configPath := writeConfig(t, tc.content)
			if _, err := Load(configPath); err == nil {
				t.Errorf("Expected validation error, got none")
			}
		})
	}
}

func TestApplyDefaults_NormalizesLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "warn"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level normalized to 'WARN', got %q", cfg.Logging.Level)
	}
}
