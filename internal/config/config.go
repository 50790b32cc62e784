// Package config holds the engine configuration and its YAML file loader.
// CLI flags override file values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Library persistence.
	LibraryPath string `yaml:"library_path"`
	RemoteURL   string `yaml:"remote_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	ScenarioDir string `yaml:"scenario_dir"`

	// Director defaults.
	Style            string  `yaml:"style"`
	Mood             string  `yaml:"mood"`
	Intensity        string  `yaml:"intensity"`
	BPM              float64 `yaml:"bpm"`
	AllowTransitions bool    `yaml:"allow_transitions"`
	MinClipMs        int     `yaml:"min_clip_ms"`
	MaxClipMs        int     `yaml:"max_clip_ms"`

	// Playback.
	AutoReturnToIdle  bool   `yaml:"auto_return_to_idle"`
	IdleReturnDelayMs int    `yaml:"idle_return_delay_ms"`
	IdleClipID        string `yaml:"idle_clip_id"`

	ShowStats    bool   `yaml:"show_stats"`
	BuildVersion string `yaml:"-"`
}

// Default returns the engine defaults used when no config file is given.
func Default() Config {
	return Config{
		LibraryPath:       "data/library.json",
		ScenarioDir:       "scenarios",
		Style:             "freestyle",
		Mood:              "energetic",
		Intensity:         "medium",
		AllowTransitions:  true,
		MinClipMs:         2000,
		MaxClipMs:         10000,
		AutoReturnToIdle:  true,
		IdleReturnDelayMs: 500,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
