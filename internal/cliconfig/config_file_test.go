package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfigFile(t, `
device = "SN-00042"
broadcast_addr = "192.168.1.255:7681"
output_dir = "/data/frames"
scan_window = "2s"
poll_timeout = "50ms"
count = 10
log_level = "debug"
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if fc.Device != "SN-00042" {
		t.Errorf("Device = %v, want SN-00042", fc.Device)
	}
	if fc.ScanWindow != "2s" {
		t.Errorf("ScanWindow = %v, want 2s", fc.ScanWindow)
	}
	if fc.Count != 10 {
		t.Errorf("Count = %v, want 10", fc.Count)
	}
}

func TestLoadFileConfig_Invalid(t *testing.T) {
	path := writeConfigFile(t, `device = [not toml`)
	if _, err := LoadFileConfig(path); err == nil {
		t.Error("LoadFileConfig on invalid TOML: got nil error")
	}
}

func TestApplyFileConfig_Precedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = "from-flag"
	cfg.OutputDir = "from-flag-dir"

	fc := FileConfig{
		Device:     "from-file",
		OutputDir:  "from-file-dir",
		ScanWindow: "2s",
	}
	// device was set explicitly on the command line; output-dir was not.
	changed := map[string]bool{"device": true}

	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.Device != "from-flag" {
		t.Errorf("Device = %v, want flag value to win", cfg.Device)
	}
	if cfg.OutputDir != "from-file-dir" {
		t.Errorf("OutputDir = %v, want file value", cfg.OutputDir)
	}
	if cfg.ScanWindow != 2*time.Second {
		t.Errorf("ScanWindow = %v, want 2s", cfg.ScanWindow)
	}
}

func TestApplyFileConfig_BadDuration(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{ScanWindow: "not-a-duration"}
	if err := ApplyFileConfig(&cfg, fc, nil); err == nil {
		t.Error("ApplyFileConfig with bad duration: got nil error")
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("STEREOLINK_DEVICE", "SN-ENV")
	t.Setenv("STEREOLINK_POLL_TIMEOUT", "250ms")
	t.Setenv("STEREOLINK_COUNT", "7")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}
	if cfg.Device != "SN-ENV" {
		t.Errorf("Device = %v, want SN-ENV", cfg.Device)
	}
	if cfg.PollTimeout != 250*time.Millisecond {
		t.Errorf("PollTimeout = %v, want 250ms", cfg.PollTimeout)
	}
	if cfg.Count != 7 {
		t.Errorf("Count = %v, want 7", cfg.Count)
	}
}

func TestApplyEnvConfig_FlagWins(t *testing.T) {
	t.Setenv("STEREOLINK_DEVICE", "SN-ENV")

	cfg := DefaultConfig()
	cfg.Device = "SN-FLAG"
	changed := map[string]bool{"device": true}

	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}
	if cfg.Device != "SN-FLAG" {
		t.Errorf("Device = %v, want flag value to win", cfg.Device)
	}
}

func TestApplyEnvConfig_BadValue(t *testing.T) {
	t.Setenv("STEREOLINK_SCAN_WINDOW", "soon")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Error("ApplyEnvConfig with bad duration: got nil error")
	}
}
