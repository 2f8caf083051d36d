// Package config defines the bridge configuration file and its defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"
)

// FileName is the configuration file inside the shared container.
const FileName = "bridge.yaml"

type Config struct {
	Queue   QueueConfig   `yaml:"queue"`
	Watcher WatcherConfig `yaml:"watcher"`
	Logging LoggingConfig `yaml:"logging"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type QueueConfig struct {
	// StaleWindowSec is how long an uncommitted staging file may linger
	// before the janitor reclaims it.
	StaleWindowSec int `yaml:"stale_window_sec"`
}

type WatcherConfig struct {
	DebounceSec     float64 `yaml:"debounce_sec"`
	ScanIntervalSec int     `yaml:"scan_interval_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type NotifyConfig struct {
	// Desktop posts a desktop notification when the watcher delivers
	// actions. Off by default.
	Desktop bool `yaml:"desktop"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Queue.StaleWindowSec <= 0 {
		c.Queue.StaleWindowSec = 3600
	}
	if c.Watcher.DebounceSec <= 0 {
		c.Watcher.DebounceSec = 0.5
	}
	if c.Watcher.ScanIntervalSec <= 0 {
		c.Watcher.ScanIntervalSec = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Load reads the config file under the shared container dir. A missing file
// yields defaults; a malformed file is an error.
func Load(dir string) (Config, error) {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Write saves cfg under the shared container dir, creating the directory if
// needed. Used by `bridgectl init`.
func Write(dir string, cfg Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create container dir: %w", err)
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
