package worker

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Wait != 600*time.Second {
		t.Errorf("Default wait mismatch: got %s, want 600s", cfg.Wait)
	}
	if cfg.MaxCycles != 0 {
		t.Errorf("Default max cycles should be unlimited, got %d", cfg.MaxCycles)
	}
	if cfg.StatusInterval != time.Second {
		t.Errorf("Default status interval mismatch: got %s", cfg.StatusInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Default log level mismatch: got %s", cfg.LogLevel)
	}

	cfg.ID = "w"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config with id should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.ID = "worker-1"
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "empty id",
			mutate:    func(c *Config) { c.ID = "" },
			wantField: "id",
		},
		{
			name:      "id with path separator",
			mutate:    func(c *Config) { c.ID = "a/b" },
			wantField: "id",
		},
		{
			name:      "id is dot",
			mutate:    func(c *Config) { c.ID = "." },
			wantField: "id",
		},
		{
			name:      "zero wait",
			mutate:    func(c *Config) { c.Wait = 0 },
			wantField: "wait",
		},
		{
			name:      "negative wait",
			mutate:    func(c *Config) { c.Wait = -time.Second },
			wantField: "wait",
		},
		{
			name:      "negative max cycles",
			mutate:    func(c *Config) { c.MaxCycles = -1 },
			wantField: "max_cycles",
		},
		{
			name:      "zero status interval",
			mutate:    func(c *Config) { c.StatusInterval = 0 },
			wantField: "status_interval",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.LogLevel = "verbose" },
			wantField: "log_level",
		},
		{
			name:      "empty log dir",
			mutate:    func(c *Config) { c.LogDir = "" },
			wantField: "log_dir",
		},
		{
			name:      "empty state dir",
			mutate:    func(c *Config) { c.StateDir = "" },
			wantField: "state_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected ConfigError, got %T: %v", err, err)
			}
			if cerr.Field != tt.wantField {
				t.Errorf("Field mismatch: got %s, want %s", cerr.Field, tt.wantField)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DRUDGE_LOG_DIR", "/var/log/drudge")
	t.Setenv("DRUDGE_STATE_DIR", "/var/lib/drudge")
	t.Setenv("DRUDGE_WAIT_SECONDS", "30")
	t.Setenv("DRUDGE_MAX_CYCLES", "100")
	t.Setenv("DRUDGE_LOG_LEVEL", "debug")
	t.Setenv("DRUDGE_CONSOLE_LOG", "true")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("Failed to load config from env: %v", err)
	}

	if cfg.LogDir != "/var/log/drudge" {
		t.Errorf("Log dir mismatch: got %s", cfg.LogDir)
	}
	if cfg.StateDir != "/var/lib/drudge" {
		t.Errorf("State dir mismatch: got %s", cfg.StateDir)
	}
	if cfg.Wait != 30*time.Second {
		t.Errorf("Wait mismatch: got %s, want 30s", cfg.Wait)
	}
	if cfg.MaxCycles != 100 {
		t.Errorf("Max cycles mismatch: got %d, want 100", cfg.MaxCycles)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Log level mismatch: got %s", cfg.LogLevel)
	}
	if !cfg.ConsoleLog {
		t.Error("Console log should be enabled")
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("Failed to load config from empty env: %v", err)
	}
	if cfg.Wait != 600*time.Second {
		t.Errorf("Expected default wait, got %s", cfg.Wait)
	}
}

func TestConfigFromEnvInvalidInt(t *testing.T) {
	t.Setenv("DRUDGE_WAIT_SECONDS", "soon")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("Expected error for non-numeric wait")
	}
}
