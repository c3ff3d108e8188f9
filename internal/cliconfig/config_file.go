package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	Device          string `toml:"device"`
	DirectAddr      string `toml:"addr"`
	BroadcastAddr   string `toml:"broadcast_addr"`
	OutputDir       string `toml:"output_dir"`
	SettingsPath    string `toml:"settings_path"`
	ScanWindow      string `toml:"scan_window"`
	PollTimeout     string `toml:"poll_timeout"`
	DialTimeout     string `toml:"dial_timeout"`
	LivenessTimeout string `toml:"liveness_timeout"`
	Count           int    `toml:"count"`
	LogLevel        string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path,
// ~/.stereolink/config.toml, or "" if the home directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".stereolink", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device", fc.Device, &cfg.Device)
	s.setString("addr", fc.DirectAddr, &cfg.DirectAddr)
	s.setString("broadcast-addr", fc.BroadcastAddr, &cfg.BroadcastAddr)
	s.setString("output-dir", fc.OutputDir, &cfg.OutputDir)
	s.setString("settings", fc.SettingsPath, &cfg.SettingsPath)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("scan-window", fc.ScanWindow, &cfg.ScanWindow); err != nil {
		return err
	}
	if err := s.setDuration("poll-timeout", fc.PollTimeout, &cfg.PollTimeout); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("liveness-timeout", fc.LivenessTimeout, &cfg.LivenessTimeout); err != nil {
		return err
	}

	s.setInt("count", fc.Count, &cfg.Count)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
