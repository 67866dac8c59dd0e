// Package engine owns the frame loop: it threads input, editor diffs,
// events, scripts, physics, spatial queries, and render sync through a
// fixed per-frame order against a single authoritative scene.
package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the host configuration, loaded from yaml.
type Config struct {
	Scene      string  `yaml:"scene"`
	DiffDir    string  `yaml:"diffDir"`
	DiffSocket string  `yaml:"diffSocket"`
	FixedStep  float64 `yaml:"fixedStep"`

	Gravity struct {
		X float64 `yaml:"x"`
		Y float64 `yaml:"y"`
	} `yaml:"gravity"`

	Script struct {
		Dir          string `yaml:"dir"`
		BudgetMillis int    `yaml:"budgetMillis"`
		Parallel     int    `yaml:"parallel"`
	} `yaml:"script"`
}

// DefaultConfig matches a bare host: 60hz fixed step, standard gravity.
func DefaultConfig() Config {
	var cfg Config
	cfg.FixedStep = 1.0 / 60
	cfg.Gravity.Y = -9.81
	return cfg
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.FixedStep <= 0 {
		cfg.FixedStep = 1.0 / 60
	}
	return cfg, nil
}
