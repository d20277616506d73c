// Package config loads service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/opensource-identity/shikra/internal/domain"
)

// Load builds the effective configuration. Precedence, lowest to highest:
// built-in defaults, the YAML file at path (optional), SHIKRA_* environment
// variables.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *domain.Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	e := cfg.Engine
	if e.MinSampleSize < 1 {
		return fmt.Errorf("engine.minSampleSize must be at least 1, got %d", e.MinSampleSize)
	}
	if e.Confidence <= 0 || e.Confidence >= 1 {
		return fmt.Errorf("engine.confidence must be in (0, 1), got %g", e.Confidence)
	}
	if e.HighFactor < e.ModerateFactor {
		return fmt.Errorf("engine.highFactor (%g) must not be below moderateFactor (%g)", e.HighFactor, e.ModerateFactor)
	}
	if e.Contamination <= 0 || e.Contamination >= 0.5 {
		return fmt.Errorf("engine.contamination must be in (0, 0.5), got %g", e.Contamination)
	}
	if e.Trees < 1 {
		return fmt.Errorf("engine.trees must be at least 1, got %d", e.Trees)
	}
	if e.BenfordWeight < 0 || e.AnomalyWeight < 0 {
		return fmt.Errorf("engine fusion weights must be non-negative")
	}

	return nil
}
