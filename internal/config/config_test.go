// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Load(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HomeDir == "" {
		t.Error("HomeDir should not be empty")
	}
	if cfg.CheckpointDir == "" {
		t.Error("CheckpointDir should not be empty")
	}
	if cfg.MaxCheckpoints <= 0 {
		t.Error("MaxCheckpoints should have a positive default")
	}

	// Verify the checkpoint directory was created
	if _, err := os.Stat(cfg.CheckpointDir); os.IsNotExist(err) {
		t.Error("CheckpointDir should be created")
	}
}

func TestConfig_ApplyFile(t *testing.T) {
	tmpDir := t.TempDir()
	overlay := filepath.Join(tmpDir, "config.yaml")

	content := "checkpoint_dir: /custom/checkpoints\nmax_checkpoints: 7\nwatch_debounce_ms: 250\n"
	if err := os.WriteFile(overlay, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		CheckpointDir:  "/default/checkpoints",
		MaxCheckpoints: 50,
		WatchDebounce:  500 * time.Millisecond,
	}
	if err := cfg.applyFile(overlay); err != nil {
		t.Fatalf("applyFile failed: %v", err)
	}

	if cfg.CheckpointDir != "/custom/checkpoints" {
		t.Errorf("Expected overridden checkpoint dir, got %s", cfg.CheckpointDir)
	}
	if cfg.MaxCheckpoints != 7 {
		t.Errorf("Expected max checkpoints 7, got %d", cfg.MaxCheckpoints)
	}
	if cfg.WatchDebounce != 250*time.Millisecond {
		t.Errorf("Expected debounce 250ms, got %v", cfg.WatchDebounce)
	}
}

func TestConfig_ApplyFileMissing(t *testing.T) {
	cfg := &Config{MaxCheckpoints: 50}
	if err := cfg.applyFile(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Errorf("A missing overlay file should not be an error: %v", err)
	}
	if cfg.MaxCheckpoints != 50 {
		t.Error("Defaults should be untouched without an overlay")
	}
}

func TestConfig_ApplyFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	overlay := filepath.Join(tmpDir, "config.yaml")
	os.WriteFile(overlay, []byte("max_checkpoints: [not a number"), 0644)

	cfg := &Config{}
	if err := cfg.applyFile(overlay); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}
