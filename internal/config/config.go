// Package config loads weightd settings from a YAML file with compiled-in
// defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aegisrisk/weightd/internal/sample"
	"github.com/aegisrisk/weightd/internal/training"
	"github.com/aegisrisk/weightd/internal/weights"
)

// #region types

// TrainingDefaults are the defaults applied when a training request omits
// options.
type TrainingDefaults struct {
	TestFraction float64 `yaml:"test_fraction"`
	RandomSeed   int64   `yaml:"random_seed"`
	CVFolds      int     `yaml:"cv_folds"`
}

// Config is the full weightd configuration.
type Config struct {
	Listen          string           `yaml:"listen"`
	DBPath          string           `yaml:"db_path"`
	MinSamples      int              `yaml:"min_samples"`
	ImportanceFloor *float64         `yaml:"importance_floor"`
	Categories      []string         `yaml:"categories"`
	Training        TrainingDefaults `yaml:"training"`
}

// #endregion

// #region defaults

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Listen:     ":8090",
		DBPath:     "weightd.db",
		MinSamples: sample.DefaultMinSamples,
		Training: TrainingDefaults{
			TestFraction: training.DefaultTestFraction,
			RandomSeed:   training.DefaultRandomSeed,
			CVFolds:      training.DefaultCVFolds,
		},
	}
}

// #endregion

// #region load

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Training.TestFraction <= 0 || cfg.Training.TestFraction >= 1 {
		return Config{}, fmt.Errorf("config: test_fraction must be in (0,1), got %v", cfg.Training.TestFraction)
	}
	if cfg.Training.CVFolds < 2 {
		return Config{}, fmt.Errorf("config: cv_folds must be >= 2, got %d", cfg.Training.CVFolds)
	}
	return cfg, nil
}

// #endregion

// #region derived

// Floor returns the configured importance floor, or the default when unset.
func (c Config) Floor() float64 {
	if c.ImportanceFloor == nil {
		return weights.DefaultImportanceFloor
	}
	return *c.ImportanceFloor
}

// Mapping builds the feature-to-category mapping from the configured
// category scheme ("<category>_score" per category), or the default scheme
// when none is configured.
func (c Config) Mapping() weights.Mapping {
	if len(c.Categories) == 0 {
		return weights.DefaultMapping()
	}
	m := make(weights.Mapping, len(c.Categories))
	for _, cat := range c.Categories {
		m[cat+"_score"] = cat
	}
	return m
}

// #endregion
