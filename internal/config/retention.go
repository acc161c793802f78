// Package config holds operator-tunable policy loaded from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RetentionConfig bounds how much run history cleanup keeps.
type RetentionConfig struct {
	// MaxAge deletes finished runs older than this
	// Default: 30 days
	MaxAge time.Duration

	// KeepPerWorker retains the newest N finished runs per worker
	// regardless of age
	// Default: 20
	KeepPerWorker int
}

// DefaultRetentionConfig returns the default retention policy.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MaxAge:        30 * 24 * time.Hour,
		KeepPerWorker: 20,
	}
}

// Validate checks the configuration for invalid values.
func (c RetentionConfig) Validate() error {
	if c.MaxAge <= 0 {
		return fmt.Errorf("retention max age must be positive (got %s)", c.MaxAge)
	}
	if c.KeepPerWorker < 0 {
		return fmt.Errorf("retention keep count must be non-negative (got %d)", c.KeepPerWorker)
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c RetentionConfig) String() string {
	return fmt.Sprintf("RetentionConfig{MaxAge: %s, KeepPerWorker: %d}", c.MaxAge, c.KeepPerWorker)
}

// RetentionConfigFromEnv creates a RetentionConfig from environment
// variables, falling back to defaults:
//
//	DRUDGE_RETENTION_DAYS - delete finished runs older than this many days
//	DRUDGE_RETENTION_KEEP - newest runs to keep per worker regardless of age
//
// Returns an error if any variable has an invalid value.
func RetentionConfigFromEnv() (RetentionConfig, error) {
	cfg := DefaultRetentionConfig()

	days := int(cfg.MaxAge / (24 * time.Hour))
	if err := parseEnvInt("DRUDGE_RETENTION_DAYS", &days); err != nil {
		return cfg, err
	}
	cfg.MaxAge = time.Duration(days) * 24 * time.Hour

	if err := parseEnvInt("DRUDGE_RETENTION_KEEP", &cfg.KeepPerWorker); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid retention configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable, leaving the
// destination untouched when the variable is unset.
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
