package worker

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for a worker loop
type Config struct {
	// ID is the worker identity. It names every artifact the loop writes
	// ({id}.log, {id}.stats, {id}.json, {id}.pid, {id}.sock) so it must be
	// usable as a filename.
	ID string

	// LogDir is where {id}.log is written
	// Default: current directory
	LogDir string

	// StateDir is where the status, pid, and socket artifacts live
	// Default: current directory
	StateDir string

	// Wait is the target cycle-start to cycle-start interval. The loop
	// sleeps Wait minus the cycle's own duration, floored at zero.
	// Default: 600s
	Wait time.Duration

	// MaxCycles stops the loop after this many cycles
	// 0 = run until stopped
	MaxCycles int

	// StatusInterval is the minimum gap between mid-run status writes.
	// Cycles faster than this share one write. The final report is always
	// written.
	// Default: 1s
	StatusInterval time.Duration

	// LogLevel is one of debug, info, warn, error
	// Default: info
	LogLevel string

	// ConsoleLog mirrors the log to stdout in addition to the file.
	// Default: false (workers usually run detached)
	ConsoleLog bool

	// Params carries opaque worker-specific settings through to factories.
	Params map[string]interface{}
}

// DefaultConfig returns the default worker loop configuration
func DefaultConfig() Config {
	return Config{
		LogDir:         ".",
		StateDir:       ".",
		Wait:           600 * time.Second,
		MaxCycles:      0,
		StatusInterval: time.Second,
		LogLevel:       "info",
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.ID == "" {
		return &ConfigError{Field: "id", Reason: "must not be empty"}
	}
	if strings.ContainsAny(c.ID, "/\\") || c.ID == "." || c.ID == ".." {
		return &ConfigError{Field: "id", Reason: fmt.Sprintf("must be usable as a filename (got %q)", c.ID)}
	}
	if c.LogDir == "" {
		return &ConfigError{Field: "log_dir", Reason: "must not be empty"}
	}
	if c.StateDir == "" {
		return &ConfigError{Field: "state_dir", Reason: "must not be empty"}
	}
	if c.Wait <= 0 {
		return &ConfigError{Field: "wait", Reason: fmt.Sprintf("must be positive (got %s)", c.Wait)}
	}
	if c.MaxCycles < 0 {
		return &ConfigError{Field: "max_cycles", Reason: fmt.Sprintf("must be non-negative (got %d)", c.MaxCycles)}
	}
	if c.StatusInterval <= 0 {
		return &ConfigError{Field: "status_interval", Reason: fmt.Sprintf("must be positive (got %s)", c.StatusInterval)}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "log_level", Reason: fmt.Sprintf("must be debug, info, warn, or error (got %q)", c.LogLevel)}
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{ID: %s, LogDir: %s, StateDir: %s, Wait: %s, MaxCycles: %d, LogLevel: %s}",
		c.ID, c.LogDir, c.StateDir, c.Wait, c.MaxCycles, c.LogLevel,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back
// to defaults. The worker id is not read from the environment; callers set
// it explicitly.
//
// Environment variables:
//   - DRUDGE_LOG_DIR: Directory for worker log files (default: .)
//   - DRUDGE_STATE_DIR: Directory for status/pid artifacts (default: .)
//   - DRUDGE_WAIT_SECONDS: Seconds between cycle starts (default: 600)
//   - DRUDGE_MAX_CYCLES: Cycle limit, 0 for unlimited (default: 0)
//   - DRUDGE_LOG_LEVEL: Log level (default: info)
//   - DRUDGE_CONSOLE_LOG: Mirror log to stdout (default: false)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvString("DRUDGE_LOG_DIR", &cfg.LogDir); err != nil {
		return cfg, err
	}
	if err := parseEnvString("DRUDGE_STATE_DIR", &cfg.StateDir); err != nil {
		return cfg, err
	}
	waitSeconds := int(cfg.Wait / time.Second)
	if err := parseEnvInt("DRUDGE_WAIT_SECONDS", &waitSeconds); err != nil {
		return cfg, err
	}
	cfg.Wait = time.Duration(waitSeconds) * time.Second
	if err := parseEnvInt("DRUDGE_MAX_CYCLES", &cfg.MaxCycles); err != nil {
		return cfg, err
	}
	if err := parseEnvString("DRUDGE_LOG_LEVEL", &cfg.LogLevel); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("DRUDGE_CONSOLE_LOG", &cfg.ConsoleLog); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
