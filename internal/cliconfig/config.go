// Package cliconfig resolves the stereolink CLI configuration from its three
// sources in precedence order: flags, then STEREOLINK_* environment
// variables, then the TOML config file.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"
)

// Config holds CLI configuration for stereolink.
type Config struct {
	// Device selects the capture device by serial. Empty means the first
	// discovered device.
	Device string

	// DirectAddr skips discovery and dials host:port directly.
	DirectAddr string

	// BroadcastAddr is the UDP discovery target.
	BroadcastAddr string

	OutputDir    string
	SettingsPath string

	ScanWindow      time.Duration
	PollTimeout     time.Duration
	DialTimeout     time.Duration
	LivenessTimeout time.Duration

	// Count is how many image sets the capture command collects before
	// exiting. Zero means run until interrupted.
	Count int

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BroadcastAddr:   "255.255.255.255:7681",
		OutputDir:       ".",
		ScanWindow:      500 * time.Millisecond,
		PollTimeout:     100 * time.Millisecond,
		DialTimeout:     2 * time.Second,
		LivenessTimeout: 3 * time.Second,
		Count:           0,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.BroadcastAddr == "" && c.DirectAddr == "" {
		return fmt.Errorf("broadcast-addr or addr is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output-dir is required")
	}
	if c.ScanWindow <= 0 {
		return fmt.Errorf("scan window must be positive")
	}
	if c.PollTimeout < 0 {
		return fmt.Errorf("poll timeout must not be negative")
	}
	if c.LivenessTimeout <= 0 {
		return fmt.Errorf("liveness timeout must be positive")
	}
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
