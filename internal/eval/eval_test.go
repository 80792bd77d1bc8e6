// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package eval

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/scoring"
)

// stubScorer recommends a fixed ranked list regardless of the seed.
type stubScorer struct {
	ranked []string
}

func (s *stubScorer) Score(seed *dataset.Deck) ([]scoring.CandidateScore, []dataset.Issue) {
	out := make([]scoring.CandidateScore, 0, len(s.ranked))
	for i, id := range s.ranked {
		if seed.Contains(id) {
			continue
		}
		out = append(out, scoring.CandidateScore{
			OracleID:  id,
			Name:      id,
			Composite: float64(len(s.ranked) - i),
		})
	}
	return out, nil
}

func testDataset(numDecks int) *dataset.Dataset {
	decks := make([]dataset.Deck, numDecks)
	for i := range decks {
		counts := map[string]int{"cmdr": 1}
		for c := 0; c < 9; c++ {
			counts[fmt.Sprintf("card-%d", c)] = 1
		}
		decks[i] = dataset.Deck{
			DeckID:     fmt.Sprintf("deck-%03d", i),
			Commanders: []string{"cmdr"},
			CardCounts: counts,
		}
	}
	return &dataset.Dataset{Decks: decks}
}

func testConfig() Config {
	return Config{
		HoldoutFraction: 0.5,
		SeedSize:        5,
		PrecisionK:      []int{3, 5},
		RandomSeed:      42,
	}
}

func TestEvaluateMetricBounds(t *testing.T) {
	// The stub recommends every non-seed card of the shared pool, so every
	// prediction inside the cutoff is a withheld card.
	ranked := make([]string, 9)
	for c := range ranked {
		ranked[c] = fmt.Sprintf("card-%d", c)
	}
	e := NewEvaluator(&stubScorer{ranked: ranked}, testConfig())

	result, err := e.Evaluate(testDataset(10))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.EvaluatedDecks == 0 {
		t.Fatal("no decks evaluated")
	}

	for _, k := range []int{3, 5} {
		p, r := result.Precision[k], result.Recall[k]
		if p < 0 || p > 1 {
			t.Errorf("precision@%d = %f, out of [0, 1]", k, p)
		}
		if r < 0 || r > 1 {
			t.Errorf("recall@%d = %f, out of [0, 1]", k, r)
		}
	}

	// Decks are 10 cards with a 5-card seed, so 5 are withheld. The stub's
	// pool covers the whole deck: precision at 3 must be perfect and recall
	// at 3 must be 3/5.
	if got := result.Precision[3]; got != 1.0 {
		t.Errorf("precision@3 = %f, want 1.0", got)
	}
	if got := result.Recall[3]; got != 0.6 {
		t.Errorf("recall@3 = %f, want 0.6", got)
	}
}

func TestEvaluateDeterminism(t *testing.T) {
	ranked := []string{"card-0", "card-1", "card-2", "card-3"}
	e := NewEvaluator(&stubScorer{ranked: ranked}, testConfig())
	ds := testDataset(20)

	first, err := e.Evaluate(ds)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	second, err := e.Evaluate(ds)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if first.EvaluatedDecks != second.EvaluatedDecks {
		t.Errorf("evaluated decks differ: %d vs %d", first.EvaluatedDecks, second.EvaluatedDecks)
	}
	for _, k := range []int{3, 5} {
		if first.Precision[k] != second.Precision[k] {
			t.Errorf("precision@%d differs: %f vs %f", k, first.Precision[k], second.Precision[k])
		}
		if first.Recall[k] != second.Recall[k] {
			t.Errorf("recall@%d differs: %f vs %f", k, first.Recall[k], second.Recall[k])
		}
	}
}

func TestSplitSeedCarriesRoleCounts(t *testing.T) {
	cards := map[string]dataset.Card{
		"cmdr":   {OracleID: "cmdr", Name: "Commander", Types: []string{"Legendary", "Creature"}},
		"ramp-0": {OracleID: "ramp-0", Name: "Ramp Zero", Roles: []string{"Ramp"}},
		"ramp-1": {OracleID: "ramp-1", Name: "Ramp One", Roles: []string{"Ramp"}},
		"ramp-2": {OracleID: "ramp-2", Name: "Ramp Two", Roles: []string{"Ramp"}},
	}
	deck := dataset.Deck{
		DeckID:     "deck-roles",
		Commanders: []string{"cmdr"},
		CardCounts: map[string]int{"cmdr": 1, "ramp-0": 1, "ramp-1": 1, "ramp-2": 1},
	}

	cfg := testConfig()
	cfg.SeedSize = 3
	e := NewEvaluator(&stubScorer{}, cfg)
	rng := rand.New(rand.NewSource(cfg.RandomSeed))

	seed, withheld := e.split(&deck, cards, rng)
	if len(withheld) != 1 {
		t.Fatalf("withheld = %d cards, want 1", len(withheld))
	}

	// The commander carries no role, so the seed holds exactly two ramp
	// cards whichever two the shuffle picked.
	if got := seed.RoleCounts["Ramp"]; got != 2 {
		t.Errorf("seed Ramp count = %d, want 2", got)
	}
}

func TestEvaluateSkipsFullyCoveredDecks(t *testing.T) {
	cfg := testConfig()
	cfg.SeedSize = 100
	cfg.HoldoutFraction = 1.0
	e := NewEvaluator(&stubScorer{ranked: []string{"card-0"}}, cfg)

	result, err := e.Evaluate(testDataset(4))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.EvaluatedDecks != 0 {
		t.Errorf("evaluated = %d, want 0 when the seed covers every deck", result.EvaluatedDecks)
	}
}

func TestEvaluateEmptyDataset(t *testing.T) {
	e := NewEvaluator(&stubScorer{}, testConfig())
	if _, err := e.Evaluate(&dataset.Dataset{}); err == nil {
		t.Fatal("expected error for empty dataset")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero holdout", func(c *Config) { c.HoldoutFraction = 0 }},
		{"holdout above one", func(c *Config) { c.HoldoutFraction = 1.5 }},
		{"zero seed size", func(c *Config) { c.SeedSize = 0 }},
		{"empty cutoffs", func(c *Config) { c.PrecisionK = nil }},
		{"non-positive cutoff", func(c *Config) { c.PrecisionK = []int{5, 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
