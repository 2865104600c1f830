package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spachava753/granny/internal/models"
)

// DefaultBatchConfig returns a BatchConfig with default values.
func DefaultBatchConfig() models.BatchConfig {
	return models.BatchConfig{
		NConcurrent: 1,
	}
}

// LoadBatchConfig loads and parses a batch manifest file.
func LoadBatchConfig(path string) (models.BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultBatchConfig(), fmt.Errorf("reading batch manifest: %w", err)
	}
	return ParseBatchConfig(data)
}

// ParseBatchConfig parses and validates a batch manifest.
func ParseBatchConfig(data []byte) (models.BatchConfig, error) {
	cfg := DefaultBatchConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, models.WrapError(models.ErrConfig, err, "parsing batch manifest")
	}

	cfg.Repository = strings.TrimSpace(cfg.Repository)
	if cfg.Repository == "" {
		return cfg, models.NewError(models.ErrConfig, "batch manifest: 'repository' is required")
	}
	if len(cfg.Packages) == 0 {
		return cfg, models.NewError(models.ErrConfig, "batch manifest: no packages listed")
	}

	// Validate package specs
	for i, spec := range cfg.Packages {
		spec = models.PackageSpec{
			URI:     strings.TrimSpace(spec.URI),
			Name:    strings.TrimSpace(spec.Name),
			Version: strings.TrimSpace(spec.Version),
		}
		if err := spec.Validate(); err != nil {
			return cfg, fmt.Errorf("packages[%d]: %w", i, err)
		}
		cfg.Packages[i] = spec
	}

	// Apply defaults for missing values
	if cfg.NConcurrent <= 0 {
		cfg.NConcurrent = 1
	}

	return cfg, nil
}
