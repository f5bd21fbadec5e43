package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest/throttle"
)

var defaults = AppConfig{
	API: APIConfig{
		Timeout: 30 * time.Second,
	},
	Harvest: HarvestConfig{
		WaitTime: throttle.DefaultDelay,
		LockTTL:  12 * time.Hour,
	},
	Storage: StorageConfig{
		Driver:     DriverCSV,
		DataDir:    "./data",
		SQLitePath: "./data/harvester.db",
	},
	Metrics: MetricsConfig{
		Job: "harvester",
	},
	Logging: LoggingConfig{
		Level:  "info",
		Format: "text",
	},
}

// Load reads configuration from a YAML file. A sibling <name>.local.<ext>
// file, when present, overrides it field by field.
func Load(path string) (*AppConfig, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	localPath := LocalPath(path)
	if _, statErr := os.Stat(localPath); statErr == nil {
		override, err := readFile(localPath)
		if err != nil {
			return nil, err
		}
		if err := overlay(cfg, override); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", localPath, err)
		}
		slog.Info("Merged config with local overrides", "local", localPath)
	}

	if err := mergo.Merge(cfg, defaults); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	// An unset selector means every value.
	if cfg.Harvest.States.IsZero() {
		cfg.Harvest.States = domain.SelectAll[string]()
	}
	if cfg.Harvest.Politicians.IsZero() {
		cfg.Harvest.Politicians = domain.SelectAll[string]()
	}

	return cfg, nil
}

// LocalPath returns the override file path for path: config.yaml becomes
// config.local.yaml.
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func readFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// overlay merges override into cfg. Selectors are replaced whole: merging
// them field by field could leave All set next to an explicit list.
func overlay(cfg, override *AppConfig) error {
	states, politicians := cfg.Harvest.States, cfg.Harvest.Politicians
	if err := mergo.Merge(cfg, *override, mergo.WithOverride); err != nil {
		return err
	}
	cfg.Harvest.States, cfg.Harvest.Politicians = states, politicians
	if !override.Harvest.States.IsZero() {
		cfg.Harvest.States = override.Harvest.States
	}
	if !override.Harvest.Politicians.IsZero() {
		cfg.Harvest.Politicians = override.Harvest.Politicians
	}
	return nil
}
