// Package settings loads capture settings produced by an external
// configurator (a settings dialog, a provisioning tool) and hot-reloads them
// when the file changes. The core transfer client treats the resulting value
// as opaque input.
package settings

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Settings is the externally supplied capture configuration.
type Settings struct {
	// Device selects a capture device by serial. Empty means any.
	Device string `toml:"device"`

	// OutputDir is where captured image files are written.
	OutputDir string `toml:"output_dir"`

	// MaxSets bounds how many image sets to keep capturing. Zero means
	// unbounded.
	MaxSets int `toml:"max_sets"`
}

// Load reads and parses a settings file.
func Load(path string) (Settings, error) {
	var s Settings
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := toml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if s.OutputDir == "" {
		s.OutputDir = "."
	}
	return s, nil
}
