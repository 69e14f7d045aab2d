// internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine's resolved paths and limits
type Config struct {
	HomeDir        string
	BaseDir        string // ~/.rewindcore
	CheckpointDir  string // ~/.rewindcore/checkpoints
	LocatorPath    string // ~/.rewindcore/locator.db
	MaxCheckpoints int
	WatchDebounce  time.Duration
}

// fileConfig is the optional ~/.rewindcore/config.yaml overlay
type fileConfig struct {
	CheckpointDir   string `yaml:"checkpoint_dir"`
	MaxCheckpoints  int    `yaml:"max_checkpoints"`
	WatchDebounceMS int    `yaml:"watch_debounce_ms"`
}

// Load creates a Config with resolved paths, applying the YAML overlay
// file when present
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Join(home, ".rewindcore")
	cfg := &Config{
		HomeDir:        home,
		BaseDir:        baseDir,
		CheckpointDir:  filepath.Join(baseDir, "checkpoints"),
		LocatorPath:    filepath.Join(baseDir, "locator.db"),
		MaxCheckpoints: 50,
		WatchDebounce:  500 * time.Millisecond,
	}

	if err := cfg.applyFile(filepath.Join(baseDir, "config.yaml")); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.BaseDir, cfg.CheckpointDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyFile overlays settings from a YAML file; a missing file is fine
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.CheckpointDir != "" {
		c.CheckpointDir = fc.CheckpointDir
	}
	if fc.MaxCheckpoints > 0 {
		c.MaxCheckpoints = fc.MaxCheckpoints
	}
	if fc.WatchDebounceMS > 0 {
		c.WatchDebounce = time.Duration(fc.WatchDebounceMS) * time.Millisecond
	}

	return nil
}
