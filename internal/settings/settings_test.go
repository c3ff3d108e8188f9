package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSettings(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	writeSettings(t, path, `
device = "SN-00042"
output_dir = "/data/frames"
max_sets = 50
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Device != "SN-00042" {
		t.Errorf("Device = %v, want SN-00042", s.Device)
	}
	if s.OutputDir != "/data/frames" {
		t.Errorf("OutputDir = %v, want /data/frames", s.OutputDir)
	}
	if s.MaxSets != 50 {
		t.Errorf("MaxSets = %v, want 50", s.MaxSets)
	}
}

func TestLoad_DefaultsOutputDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	writeSettings(t, path, `device = "X"`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.OutputDir != "." {
		t.Errorf("OutputDir = %v, want .", s.OutputDir)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load on missing file: got nil error")
	}
}

func TestWatcher_DeliversReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	writeSettings(t, path, `output_dir = "/first"`)

	updates := make(chan Settings, 4)
	w := NewWatcher(path, func(s Settings) { updates <- s }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	// Give the watcher time to register before mutating the file.
	time.Sleep(100 * time.Millisecond)
	writeSettings(t, path, `output_dir = "/second"`)

	select {
	case s := <-updates:
		if s.OutputDir != "/second" {
			t.Errorf("OutputDir = %v, want /second", s.OutputDir)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no settings update delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	writeSettings(t, path, `output_dir = "/first"`)

	updates := make(chan Settings, 4)
	w := NewWatcher(path, func(s Settings) { updates <- s }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	writeSettings(t, filepath.Join(dir, "unrelated.toml"), `output_dir = "/other"`)

	select {
	case s := <-updates:
		t.Errorf("unexpected update from unrelated file: %+v", s)
	case <-time.After(400 * time.Millisecond):
	}
}
