// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package eval measures recommendation quality with a hold-one-part-out
// protocol: for each sampled deck the commanders plus a random subset of the
// list become the seed, the rest is withheld, and precision and recall at K
// report how much of the withheld portion the ranker recovers.
//
// Everything random is driven by a single seeded source, so the same corpus,
// model, and seed produce identical metrics.
package eval

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/logging"
	"github.com/TrevanC/MTGrec/internal/scoring"
)

// Config holds the evaluation protocol parameters.
type Config struct {
	// HoldoutFraction is the share of decks sampled for evaluation.
	HoldoutFraction float64

	// SeedSize is the number of cards revealed to the ranker, commanders
	// included.
	SeedSize int

	// PrecisionK lists the cutoffs to report.
	PrecisionK []int

	// RandomSeed drives deck sampling and seed selection.
	RandomSeed int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HoldoutFraction: 0.1,
		SeedSize:        60,
		PrecisionK:      []int{5, 10, 20},
		RandomSeed:      42,
	}
}

// Validate checks the protocol parameters.
func (c Config) Validate() error {
	if c.HoldoutFraction <= 0 || c.HoldoutFraction > 1 {
		return fmt.Errorf("holdout_fraction must be in (0, 1], got %f", c.HoldoutFraction)
	}
	if c.SeedSize < 1 {
		return fmt.Errorf("seed_size must be positive, got %d", c.SeedSize)
	}
	if len(c.PrecisionK) == 0 {
		return fmt.Errorf("precision_k must not be empty")
	}
	for _, k := range c.PrecisionK {
		if k < 1 {
			return fmt.Errorf("precision_k entries must be positive, got %d", k)
		}
	}
	return nil
}

// Result holds micro-averaged metrics per cutoff.
type Result struct {
	// Precision maps K to pooled hits / pooled predictions.
	Precision map[int]float64 `json:"precision"`

	// Recall maps K to pooled hits / pooled withheld cards.
	Recall map[int]float64 `json:"recall"`

	// EvaluatedDecks is the number of decks that contributed. Decks whose
	// list fits entirely inside the seed are skipped.
	EvaluatedDecks int `json:"evaluated_decks"`
}

// Scorer is the ranking interface under evaluation.
type Scorer interface {
	Score(seed *dataset.Deck) ([]scoring.CandidateScore, []dataset.Issue)
}

// Evaluator runs the holdout protocol against a fitted scorer.
type Evaluator struct {
	scorer Scorer
	cfg    Config
}

// NewEvaluator creates an evaluator.
func NewEvaluator(scorer Scorer, cfg Config) *Evaluator {
	return &Evaluator{scorer: scorer, cfg: cfg}
}

// Evaluate samples decks from the dataset and reports pooled precision and
// recall at each configured cutoff.
func (e *Evaluator) Evaluate(ds *dataset.Dataset) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(ds.Decks) == 0 {
		return nil, fmt.Errorf("no decks to evaluate")
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(e.cfg.RandomSeed))

	indices := rng.Perm(len(ds.Decks))
	sampleSize := int(e.cfg.HoldoutFraction * float64(len(ds.Decks)))
	if sampleSize < 1 {
		sampleSize = 1
	}
	sample := indices[:sampleSize]
	sort.Ints(sample)

	hits := make(map[int]int, len(e.cfg.PrecisionK))
	predicted := make(map[int]int, len(e.cfg.PrecisionK))
	withheldTotal := make(map[int]int, len(e.cfg.PrecisionK))

	evaluated := 0
	for _, idx := range sample {
		deck := &ds.Decks[idx]

		seed, withheld := e.split(deck, ds.Cards, rng)
		if len(withheld) == 0 {
			continue
		}
		evaluated++

		scored, _ := e.scorer.Score(seed)
		for _, k := range e.cfg.PrecisionK {
			top := scored
			if len(top) > k {
				top = top[:k]
			}
			for _, cs := range top {
				if _, ok := withheld[cs.OracleID]; ok {
					hits[k]++
				}
			}
			predicted[k] += len(top)
			withheldTotal[k] += len(withheld)
		}
	}

	result := &Result{
		Precision:      make(map[int]float64, len(e.cfg.PrecisionK)),
		Recall:         make(map[int]float64, len(e.cfg.PrecisionK)),
		EvaluatedDecks: evaluated,
	}
	for _, k := range e.cfg.PrecisionK {
		if predicted[k] > 0 {
			result.Precision[k] = float64(hits[k]) / float64(predicted[k])
		}
		if withheldTotal[k] > 0 {
			result.Recall[k] = float64(hits[k]) / float64(withheldTotal[k])
		}
	}

	log := logging.With("eval")
	log.Info().
		Int("sampled", sampleSize).
		Int("evaluated", evaluated).
		Dur("elapsed", time.Since(start)).
		Msg("holdout evaluation finished")

	return result, nil
}

// split partitions a deck into a seed and the withheld remainder. Commanders
// are always part of the seed; the rest of the seed is drawn at random.
func (e *Evaluator) split(deck *dataset.Deck, cards map[string]dataset.Card, rng *rand.Rand) (*dataset.Deck, map[string]struct{}) {
	var rest []string
	for _, id := range deck.SortedCardIDs() {
		if !deck.IsCommander(id) {
			rest = append(rest, id)
		}
	}
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	seedCounts := make(map[string]int)
	size := 0
	for _, id := range deck.Commanders {
		seedCounts[id] = deck.CardCounts[id]
		size += deck.CardCounts[id]
	}

	withheld := make(map[string]struct{})
	for _, id := range rest {
		if size < e.cfg.SeedSize {
			seedCounts[id] = deck.CardCounts[id]
			size += deck.CardCounts[id]
		} else {
			withheld[id] = struct{}{}
		}
	}

	seed := &dataset.Deck{
		DeckID:        deck.DeckID,
		Commanders:    deck.Commanders,
		CardCounts:    seedCounts,
		ColorIdentity: deck.ColorIdentity,
		RoleCounts:    dataset.DeriveRoleCounts(seedCounts, cards),
	}
	return seed, withheld
}
