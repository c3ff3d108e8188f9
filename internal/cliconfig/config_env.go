package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (STEREOLINK_*). It respects flags that have been explicitly set (changed
// map). Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device", os.Getenv("STEREOLINK_DEVICE"), &cfg.Device)
	s.setString("addr", os.Getenv("STEREOLINK_ADDR"), &cfg.DirectAddr)
	s.setString("broadcast-addr", os.Getenv("STEREOLINK_BROADCAST_ADDR"), &cfg.BroadcastAddr)
	s.setString("output-dir", os.Getenv("STEREOLINK_OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("settings", os.Getenv("STEREOLINK_SETTINGS_PATH"), &cfg.SettingsPath)
	s.setString("log-level", os.Getenv("STEREOLINK_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("scan-window", os.Getenv("STEREOLINK_SCAN_WINDOW"), &cfg.ScanWindow); err != nil {
		return err
	}
	if err := s.setDuration("poll-timeout", os.Getenv("STEREOLINK_POLL_TIMEOUT"), &cfg.PollTimeout); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", os.Getenv("STEREOLINK_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("liveness-timeout", os.Getenv("STEREOLINK_LIVENESS_TIMEOUT"), &cfg.LivenessTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("count", os.Getenv("STEREOLINK_COUNT"), &cfg.Count); err != nil {
		return err
	}

	return nil
}
