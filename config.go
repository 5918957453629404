package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional yaml configuration. It is loaded once at
// startup; the fan table and the interval never change while the
// manager runs.
type Config struct {
	// CheckInterval is the time between manager ticks, in seconds.
	CheckInterval int `yaml:"check_interval"`

	// StatusBind is the listen address of the status/metrics HTTP
	// server, e.g. "127.0.0.1:9662". Empty leaves the server off.
	StatusBind string `yaml:"status_bind"`

	// Levels overrides the built-in fan table when present.
	Levels LevelTable `yaml:"levels"`
}

// loadConfig returns the built-in defaults when path is empty,
// otherwise reads and validates the yaml file at path.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{
		CheckInterval: 1,
		Levels:        defaultLevels,
	}
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %v", path, err)
	}

	if cfg.CheckInterval < 1 {
		return nil, fmt.Errorf("check_interval must be at least 1 second, got %d", cfg.CheckInterval)
	}
	if err = cfg.Levels.validate(); err != nil {
		return nil, fmt.Errorf("invalid level table: %v", err)
	}

	return cfg, nil
}
