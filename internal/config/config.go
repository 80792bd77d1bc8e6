// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package config defines the complete MTGrec configuration surface.
//
// Every tunable constant of the recommendation engine lives here: the
// smoothing constants, the similarity shrinkage and top-K bounds, the four
// blend weights, the deck-shape targets, and the validation-harness
// parameters. Configuration is loaded once at startup via Koanf (defaults,
// then optional YAML file, then environment variables) and validated once;
// an invalid value is fatal, never deferred to request time.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for MTGrec.
type Config struct {
	// Data holds dataset and cache locations.
	Data DataConfig `koanf:"data"`

	// Dataset holds dataset-builder parameters.
	Dataset DatasetConfig `koanf:"dataset"`

	// Matrix holds matrix-builder parameters.
	Matrix MatrixConfig `koanf:"matrix"`

	// Similarity holds item-item similarity parameters.
	Similarity SimilarityConfig `koanf:"similarity"`

	// Prior holds commander-prior parameters.
	Prior PriorConfig `koanf:"prior"`

	// Scoring holds the blend weights and candidate limits.
	Scoring ScoringConfig `koanf:"scoring"`

	// Shape holds the deck-shape targets used for soft penalties.
	Shape ShapeConfig `koanf:"shape"`

	// Deck holds deck-assembly parameters.
	Deck DeckConfig `koanf:"deck"`

	// Eval holds validation-harness parameters.
	Eval EvalConfig `koanf:"eval"`

	// Daemon holds background-refresh parameters.
	Daemon DaemonConfig `koanf:"daemon"`

	// Logging holds log level and format.
	Logging LoggingConfig `koanf:"logging"`
}

// DataConfig holds dataset and cache locations.
type DataConfig struct {
	// DatasetPath is the compact dataset document (JSON, optionally .gz).
	// This document is the sole input to the engine.
	DatasetPath string `koanf:"dataset_path"`

	// CacheDir is where similarity caches are persisted.
	// Caches are pure derived artifacts, safe to delete at any time.
	CacheDir string `koanf:"cache_dir"`
}

// DatasetConfig holds dataset-builder parameters.
type DatasetConfig struct {
	// SmoothingAlpha is the additive smoothing constant for commander
	// priors: (count + alpha) / (total + alpha * vocabulary).
	// Default: 0.01.
	SmoothingAlpha float64 `koanf:"smoothing_alpha"`

	// MaxFailureRate is the fraction of raw records that may be skipped
	// before the whole build is treated as failed.
	// Default: 0.25.
	MaxFailureRate float64 `koanf:"max_failure_rate"`
}

// MatrixConfig holds matrix-builder parameters.
type MatrixConfig struct {
	// MinCardFrequency drops cards seen in fewer decks than this from the
	// matrix columns. Raising it to 3-5 shrinks the similarity computation
	// considerably on large corpora.
	// Default: 1.
	MinCardFrequency int `koanf:"min_card_frequency"`
}

// SimilarityConfig holds item-item similarity parameters.
type SimilarityConfig struct {
	// TopK is the number of neighbors retained per card.
	// Typical range: 50-200. Default: 200.
	TopK int `koanf:"top_k"`

	// MinOverlap is the minimum number of decks that must contain both
	// cards for a pair to be considered. Default: 2.
	MinOverlap int `koanf:"min_overlap"`

	// Shrinkage discounts low-overlap pairs:
	// shrunk = cosine * overlap / (overlap + shrinkage).
	// Default: 0.5.
	Shrinkage float64 `koanf:"shrinkage"`

	// NumWorkers is the number of parallel workers for the fit phase.
	// 0 means runtime.NumCPU().
	NumWorkers int `koanf:"num_workers"`
}

// PriorConfig holds commander-prior parameters.
type PriorConfig struct {
	// MaxCommanders caps how many seed commanders are blended.
	// Commander decks have at most two (partners/backgrounds). Default: 2.
	MaxCommanders int `koanf:"max_commanders"`
}

// ScoringConfig holds the blend weights and candidate limits.
type ScoringConfig struct {
	// SimilarityWeight scales the summed neighbor similarity component.
	// Default: 0.6.
	SimilarityWeight float64 `koanf:"similarity_weight"`

	// CommanderWeight scales the blended commander prior component.
	// Default: 0.3.
	CommanderWeight float64 `koanf:"commander_weight"`

	// FrequencyWeight scales the log1p global-frequency staple boost.
	// Kept small so staples cannot dominate. Default: 0.1.
	FrequencyWeight float64 `koanf:"frequency_weight"`

	// ShapeWeight scales the soft deck-shape penalty. Default: 0.05.
	ShapeWeight float64 `koanf:"shape_weight"`

	// MaxCandidates caps the scored candidate list. Default: 500.
	MaxCandidates int `koanf:"max_candidates"`
}

// ShapeConfig holds the deck-shape targets used for soft penalties.
type ShapeConfig struct {
	// Lands is the target land count. Default: 38.
	Lands int `koanf:"lands"`

	// Ramp is the target ramp count. Default: 10.
	Ramp int `koanf:"ramp"`

	// Draw is the target card-draw count. Default: 10.
	Draw int `koanf:"draw"`

	// Removal is the target removal count. Default: 10.
	Removal int `koanf:"removal"`

	// Curve is the target share of nonland cards per mana-value bucket
	// (0-1, 2, 3, 4, 5, 6, 7+). Must sum to 1. Defaults to a typical
	// midrange Commander curve.
	Curve []float64 `koanf:"curve"`
}

// DeckConfig holds deck-assembly parameters.
type DeckConfig struct {
	// TargetSize is the full deck size including commanders. Default: 100.
	TargetSize int `koanf:"target_size"`

	// RankedListSize is the default number of ranked recommendations.
	// Default: 25.
	RankedListSize int `koanf:"ranked_list_size"`

	// MaxSwaps caps the suggested swap pairs for complete decks.
	// Default: 5.
	MaxSwaps int `koanf:"max_swaps"`
}

// EvalConfig holds validation-harness parameters.
type EvalConfig struct {
	// HoldoutFraction is the fraction of decks held out. Default: 0.1.
	HoldoutFraction float64 `koanf:"holdout_fraction"`

	// SeedSize is the number of cards revealed per held-out deck,
	// commanders included. Default: 60.
	SeedSize int `koanf:"seed_size"`

	// PrecisionK lists the K values for precision/recall@K.
	// Default: [5, 10, 20].
	PrecisionK []int `koanf:"precision_k"`

	// RandomSeed fixes the harness sampling for reproducible tuning runs.
	// Default: 42.
	RandomSeed int64 `koanf:"random_seed"`
}

// DaemonConfig holds background-refresh parameters.
type DaemonConfig struct {
	// RefreshInterval is how often the daemon rebuilds the snapshot from
	// the dataset document. Default: 24h.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint in daemon mode. Empty disables the listener.
	MetricsAddr string `koanf:"metrics_addr"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	// Level is the minimum log level. Default: info.
	Level string `koanf:"level"`

	// Format is json or console. Default: json.
	Format string `koanf:"format"`

	// Caller includes caller information in logs. Default: false.
	Caller bool `koanf:"caller"`
}

// Default returns a Config with production defaults.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			DatasetPath: "data/processed/compact_dataset.json",
			CacheDir:    "data/cache",
		},
		Dataset: DatasetConfig{
			SmoothingAlpha: 0.01,
			MaxFailureRate: 0.25,
		},
		Matrix: MatrixConfig{
			MinCardFrequency: 1,
		},
		Similarity: SimilarityConfig{
			TopK:       200,
			MinOverlap: 2,
			Shrinkage:  0.5,
			NumWorkers: 0,
		},
		Prior: PriorConfig{
			MaxCommanders: 2,
		},
		Scoring: ScoringConfig{
			SimilarityWeight: 0.6,
			CommanderWeight:  0.3,
			FrequencyWeight:  0.1,
			ShapeWeight:      0.05,
			MaxCandidates:    500,
		},
		Shape: ShapeConfig{
			Lands:   38,
			Ramp:    10,
			Draw:    10,
			Removal: 10,
			Curve:   []float64{0.15, 0.25, 0.25, 0.15, 0.10, 0.05, 0.05},
		},
		Deck: DeckConfig{
			TargetSize:     100,
			RankedListSize: 25,
			MaxSwaps:       5,
		},
		Eval: EvalConfig{
			HoldoutFraction: 0.1,
			SeedSize:        60,
			PrecisionK:      []int{5, 10, 20},
			RandomSeed:      42,
		},
		Daemon: DaemonConfig{
			RefreshInterval: 24 * time.Hour,
			MetricsAddr:     "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks every tunable once at startup.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Data.DatasetPath == "" {
		return fmt.Errorf("data.dataset_path must not be empty")
	}

	if c.Dataset.SmoothingAlpha < 0 {
		return fmt.Errorf("dataset.smoothing_alpha must be non-negative, got %f", c.Dataset.SmoothingAlpha)
	}
	if c.Dataset.MaxFailureRate < 0 || c.Dataset.MaxFailureRate > 1 {
		return fmt.Errorf("dataset.max_failure_rate must be in [0, 1], got %f", c.Dataset.MaxFailureRate)
	}

	if c.Matrix.MinCardFrequency < 1 {
		return fmt.Errorf("matrix.min_card_frequency must be positive, got %d", c.Matrix.MinCardFrequency)
	}

	if c.Similarity.TopK < 1 {
		return fmt.Errorf("similarity.top_k must be positive, got %d", c.Similarity.TopK)
	}
	if c.Similarity.MinOverlap < 1 {
		return fmt.Errorf("similarity.min_overlap must be positive, got %d", c.Similarity.MinOverlap)
	}
	if c.Similarity.Shrinkage < 0 {
		return fmt.Errorf("similarity.shrinkage must be non-negative, got %f", c.Similarity.Shrinkage)
	}
	if c.Similarity.NumWorkers < 0 {
		return fmt.Errorf("similarity.num_workers must be non-negative, got %d", c.Similarity.NumWorkers)
	}

	if c.Prior.MaxCommanders < 1 || c.Prior.MaxCommanders > 2 {
		return fmt.Errorf("prior.max_commanders must be 1 or 2, got %d", c.Prior.MaxCommanders)
	}

	for name, w := range map[string]float64{
		"scoring.similarity_weight": c.Scoring.SimilarityWeight,
		"scoring.commander_weight":  c.Scoring.CommanderWeight,
		"scoring.frequency_weight":  c.Scoring.FrequencyWeight,
		"scoring.shape_weight":      c.Scoring.ShapeWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, w)
		}
	}
	if c.Scoring.MaxCandidates < 1 {
		return fmt.Errorf("scoring.max_candidates must be positive, got %d", c.Scoring.MaxCandidates)
	}

	for name, v := range map[string]int{
		"shape.lands":   c.Shape.Lands,
		"shape.ramp":    c.Shape.Ramp,
		"shape.draw":    c.Shape.Draw,
		"shape.removal": c.Shape.Removal,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}
	if len(c.Shape.Curve) > 0 {
		var sum float64
		for i, share := range c.Shape.Curve {
			if share < 0 {
				return fmt.Errorf("shape.curve[%d] must be non-negative, got %f", i, share)
			}
			sum += share
		}
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("shape.curve must sum to 1, got %f", sum)
		}
	}

	if c.Deck.TargetSize < 1 {
		return fmt.Errorf("deck.target_size must be positive, got %d", c.Deck.TargetSize)
	}
	if c.Deck.RankedListSize < 1 {
		return fmt.Errorf("deck.ranked_list_size must be positive, got %d", c.Deck.RankedListSize)
	}
	if c.Deck.MaxSwaps < 0 {
		return fmt.Errorf("deck.max_swaps must be non-negative, got %d", c.Deck.MaxSwaps)
	}

	if c.Eval.HoldoutFraction <= 0 || c.Eval.HoldoutFraction > 1 {
		return fmt.Errorf("eval.holdout_fraction must be in (0, 1], got %f", c.Eval.HoldoutFraction)
	}
	if c.Eval.SeedSize < 1 {
		return fmt.Errorf("eval.seed_size must be positive, got %d", c.Eval.SeedSize)
	}
	if len(c.Eval.PrecisionK) == 0 {
		return fmt.Errorf("eval.precision_k must not be empty")
	}
	for _, k := range c.Eval.PrecisionK {
		if k < 1 {
			return fmt.Errorf("eval.precision_k values must be positive, got %d", k)
		}
	}

	if c.Daemon.RefreshInterval <= 0 {
		return fmt.Errorf("daemon.refresh_interval must be positive, got %v", c.Daemon.RefreshInterval)
	}

	return nil
}
