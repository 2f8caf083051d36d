package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Queue.StaleWindowSec != 3600 {
		t.Errorf("stale window: got %d, want 3600", cfg.Queue.StaleWindowSec)
	}
	if cfg.Watcher.DebounceSec != 0.5 {
		t.Errorf("debounce: got %v, want 0.5", cfg.Watcher.DebounceSec)
	}
	if cfg.Watcher.ScanIntervalSec != 30 {
		t.Errorf("scan interval: got %d, want 30", cfg.Watcher.ScanIntervalSec)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level: got %q, want info", cfg.Logging.Level)
	}
	if cfg.Notify.Desktop {
		t.Error("desktop notifications must default to off")
	}
}

func TestLoad_FileOverridesAndBackfills(t *testing.T) {
	dir := t.TempDir()
	content := []byte("queue:\n  stale_window_sec: 120\nlogging:\n  level: debug\n")
	if err := os.WriteFile(filepath.Join(dir, FileName), content, 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Queue.StaleWindowSec != 120 {
		t.Errorf("stale window: got %d, want 120", cfg.Queue.StaleWindowSec)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level: got %q, want debug", cfg.Logging.Level)
	}
	// Unset keys still get defaults.
	if cfg.Watcher.ScanIntervalSec != 30 {
		t.Errorf("scan interval: got %d, want 30", cfg.Watcher.ScanIntervalSec)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(":\tnot yaml"), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "container")

	cfg := Default()
	cfg.Notify.Desktop = true
	if err := Write(dir, cfg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Notify.Desktop {
		t.Error("desktop flag lost in round trip")
	}
}
