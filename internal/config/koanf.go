// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mtgrec/config.yaml",
	"/etc/mtgrec/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "MTGREC_CONFIG"

// Load loads configuration using Koanf with layered sources:
//  1. Defaults: built-in values from Default()
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. The result is validated before it is
// returned; callers treat an error as fatal.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// MTGREC_SIMILARITY_TOP_K -> similarity.top_k, and so on.
	if err := k.Load(env.Provider("MTGREC_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated values when
// they arrive as env var strings.
var sliceConfigPaths = []string{
	"shape.curve",
	"eval.precision_k",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}

		// Numeric slice paths need typed elements for unmarshal.
		if path == "eval.precision_k" {
			values := make([]int, 0, len(trimmed))
			for _, p := range trimmed {
				v, err := strconv.Atoi(p)
				if err != nil {
					return fmt.Errorf("invalid integer value %q for %s: %w", p, path, err)
				}
				values = append(values, v)
			}
			if err := k.Set(path, values); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
			continue
		}

		values := make([]float64, 0, len(trimmed))
		for _, p := range trimmed {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return fmt.Errorf("invalid numeric value %q for %s: %w", p, path, err)
			}
			values = append(values, v)
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps MTGREC_* environment variable names to koanf paths.
//
// Examples:
//   - MTGREC_DATASET_PATH -> data.dataset_path
//   - MTGREC_SIMILARITY_TOP_K -> similarity.top_k
//   - MTGREC_LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "MTGREC_"))

	envMappings := map[string]string{
		// Data locations
		"dataset_path": "data.dataset_path",
		"cache_dir":    "data.cache_dir",

		// Dataset builder
		"smoothing_alpha":  "dataset.smoothing_alpha",
		"max_failure_rate": "dataset.max_failure_rate",

		// Matrix builder
		"min_card_frequency": "matrix.min_card_frequency",

		// Similarity engine
		"similarity_top_k":       "similarity.top_k",
		"similarity_min_overlap": "similarity.min_overlap",
		"similarity_shrinkage":   "similarity.shrinkage",
		"similarity_workers":     "similarity.num_workers",

		// Commander priors
		"max_commanders": "prior.max_commanders",

		// Scoring blend
		"similarity_weight": "scoring.similarity_weight",
		"commander_weight":  "scoring.commander_weight",
		"frequency_weight":  "scoring.frequency_weight",
		"shape_weight":      "scoring.shape_weight",
		"max_candidates":    "scoring.max_candidates",

		// Deck shape targets
		"shape_lands":   "shape.lands",
		"shape_ramp":    "shape.ramp",
		"shape_draw":    "shape.draw",
		"shape_removal": "shape.removal",
		"shape_curve":   "shape.curve",

		// Deck assembly
		"deck_target_size": "deck.target_size",
		"deck_ranked_size": "deck.ranked_list_size",
		"deck_max_swaps":   "deck.max_swaps",

		// Validation harness
		"eval_holdout_fraction": "eval.holdout_fraction",
		"eval_seed_size":        "eval.seed_size",
		"eval_precision_k":      "eval.precision_k",
		"eval_random_seed":      "eval.random_seed",

		// Daemon mode
		"refresh_interval": "daemon.refresh_interval",
		"metrics_addr":     "daemon.metrics_addr",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so stray environment variables cannot
	// pollute the config.
	return ""
}
