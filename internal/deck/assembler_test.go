// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package deck

import (
	"context"
	"testing"

	"github.com/TrevanC/MTGrec/internal/constraint"
	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/matrix"
	"github.com/TrevanC/MTGrec/internal/prior"
	"github.com/TrevanC/MTGrec/internal/scoring"
	"github.com/TrevanC/MTGrec/internal/similarity"
)

func testCards() map[string]dataset.Card {
	return map[string]dataset.Card{
		"korvold":  {OracleID: "korvold", Name: "Korvold, Fae-Cursed King", ColorIdentity: []string{"B", "G", "R"}, Types: []string{"Legendary", "Creature"}, ManaValue: 5, CommanderLegal: true},
		"dockside": {OracleID: "dockside", Name: "Dockside Extortionist", ColorIdentity: []string{"R"}, Types: []string{"Creature"}, ManaValue: 2, CommanderLegal: true},
		"solring":  {OracleID: "solring", Name: "Sol Ring", Types: []string{"Artifact"}, Roles: []string{"Ramp"}, ManaValue: 1, CommanderLegal: true},
		"rampant":  {OracleID: "rampant", Name: "Rampant Growth", ColorIdentity: []string{"G"}, Types: []string{"Sorcery"}, Roles: []string{"Ramp"}, ManaValue: 2, CommanderLegal: true},
		"filler":   {OracleID: "filler", Name: "Fortuitous Find", ColorIdentity: []string{"B"}, Types: []string{"Sorcery"}, ManaValue: 3, CommanderLegal: true},
		"mountain": {OracleID: "mountain", Name: "Mountain", ColorIdentity: []string{"R"}, Types: []string{"Basic", "Land"}, Roles: []string{"Land"}, CommanderLegal: true},
	}
}

func testDecks(includeBasics bool) []dataset.Deck {
	decks := []dataset.Deck{
		{DeckID: "d1", Commanders: []string{"korvold"}, CardCounts: map[string]int{"korvold": 1, "dockside": 1, "solring": 1}, ColorIdentity: []string{"B", "G", "R"}},
		{DeckID: "d2", Commanders: []string{"korvold"}, CardCounts: map[string]int{"korvold": 1, "dockside": 1, "solring": 1}, ColorIdentity: []string{"B", "G", "R"}},
		{DeckID: "d3", Commanders: []string{"korvold"}, CardCounts: map[string]int{"korvold": 1, "dockside": 1, "rampant": 1, "filler": 1}, ColorIdentity: []string{"B", "G", "R"}},
	}
	if includeBasics {
		for i := range decks {
			decks[i].CardCounts["mountain"] = 2
		}
	}
	return decks
}

func testAssembler(t *testing.T, includeBasics bool, cfg Config) *Assembler {
	t.Helper()

	cards := testCards()
	ds := &dataset.Dataset{
		Decks: testDecks(includeBasics),
		Cards: cards,
		CommanderProfiles: map[string]dataset.CommanderProfile{
			"korvold": {
				OracleID:      "korvold",
				CardFrequency: map[string]float64{"dockside": 0.9, "solring": 0.5, "rampant": 0.3},
				SampleSize:    30,
			},
		},
	}

	bundle, err := matrix.Build(ds, matrix.DefaultConfig())
	if err != nil {
		t.Fatalf("matrix build: %v", err)
	}

	model := similarity.New(similarity.Config{TopK: 10, MinOverlap: 1, Shrinkage: 0, NumWorkers: 1})
	if err := model.Fit(context.Background(), bundle); err != nil {
		t.Fatalf("similarity fit: %v", err)
	}

	checker := constraint.NewChecker(cards, nil)
	shape := constraint.NewShapeEvaluator(constraint.DefaultShapeTarget())
	scoringCfg := scoring.DefaultConfig()
	scorer := scoring.NewScorer(
		model,
		prior.NewStore(ds.CommanderProfiles, prior.DefaultConfig()),
		shape,
		checker,
		cards,
		bundle.GlobalFrequency,
		scoringCfg,
	)
	return NewAssembler(scorer, checker, shape, cards, bundle.GlobalFrequency, scoringCfg, cfg)
}

func seedDeck() *dataset.Deck {
	return &dataset.Deck{
		DeckID:        "seed",
		Commanders:    []string{"korvold"},
		CardCounts:    map[string]int{"korvold": 1, "dockside": 1},
		ColorIdentity: []string{"B", "G", "R"},
	}
}

func TestRankedListTruncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RankedListSize = 2
	a := testAssembler(t, true, cfg)

	scored, issues := a.RankedList(seedDeck())
	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
	if len(scored) != 2 {
		t.Fatalf("suggestions = %d, want 2", len(scored))
	}
	if scored[0].Composite < scored[1].Composite {
		t.Error("suggestions not sorted best first")
	}
}

func TestCompleteReachesTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 10
	a := testAssembler(t, true, cfg)
	seed := seedDeck()

	result, issues := a.Complete(seed)
	for _, issue := range issues {
		if issue.Kind == dataset.IssueExhausted {
			t.Fatalf("unexpected exhaustion: %v", issue)
		}
	}

	size := 0
	for _, n := range result.CardCounts {
		size += n
	}
	if size != cfg.TargetSize {
		t.Fatalf("completed size = %d, want %d", size, cfg.TargetSize)
	}
	if len(result.Added) != cfg.TargetSize-2 {
		t.Errorf("added = %d, want %d", len(result.Added), cfg.TargetSize-2)
	}

	// Only basic lands may exceed one copy.
	cards := testCards()
	for id, n := range result.CardCounts {
		card := cards[id]
		if n > 1 && !card.IsBasicLand() {
			t.Errorf("non-basic %s has %d copies", id, n)
		}
	}

	// Seed cards are never re-added.
	for _, added := range result.Added {
		if added.OracleID == "korvold" || added.OracleID == "dockside" {
			t.Errorf("seed card %s re-added", added.OracleID)
		}
	}
}

func TestCompleteExhaustsWithoutBasics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 50
	a := testAssembler(t, false, cfg)

	result, issues := a.Complete(seedDeck())

	var exhausted bool
	for _, issue := range issues {
		if issue.Kind == dataset.IssueExhausted {
			exhausted = true
		}
	}
	if !exhausted {
		t.Fatal("expected exhausted issue when the singleton pool runs dry")
	}

	size := 0
	for _, n := range result.CardCounts {
		size += n
	}
	if size >= cfg.TargetSize {
		t.Errorf("size = %d, expected partial result below %d", size, cfg.TargetSize)
	}
	if len(result.Added) == 0 {
		t.Error("partial completion should still add available candidates")
	}
}

func TestCompleteDeterminism(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 10
	a := testAssembler(t, true, cfg)

	first, _ := a.Complete(seedDeck())
	second, _ := a.Complete(seedDeck())

	if len(first.Added) != len(second.Added) {
		t.Fatalf("pick counts differ: %d vs %d", len(first.Added), len(second.Added))
	}
	for i := range first.Added {
		if first.Added[i].OracleID != second.Added[i].OracleID {
			t.Fatalf("pick %d differs: %s vs %s", i, first.Added[i].OracleID, second.Added[i].OracleID)
		}
	}
}

func TestSuggestSwapsCutsWeakestCard(t *testing.T) {
	a := testAssembler(t, true, DefaultConfig())

	seed := &dataset.Deck{
		DeckID:        "seed",
		Commanders:    []string{"korvold"},
		CardCounts:    map[string]int{"korvold": 1, "dockside": 1, "filler": 1},
		ColorIdentity: []string{"B", "G", "R"},
	}

	swaps, _ := a.SuggestSwaps(seed)
	if len(swaps) == 0 {
		t.Fatal("expected at least one swap")
	}
	if len(swaps) > DefaultConfig().MaxSwaps {
		t.Fatalf("swaps = %d, exceeds max %d", len(swaps), DefaultConfig().MaxSwaps)
	}

	if swaps[0].Remove != "filler" {
		t.Errorf("first cut = %s, want filler (lowest play rate)", swaps[0].Remove)
	}
	for _, swap := range swaps {
		if swap.Remove == "korvold" {
			t.Error("commander must never be cut")
		}
		if swap.Add.OracleID == swap.Remove {
			t.Error("swap replaces a card with itself")
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.TargetSize = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero target_size should fail validation")
	}

	bad = DefaultConfig()
	bad.MaxSwaps = -1
	if err := bad.Validate(); err == nil {
		t.Error("negative max_swaps should fail validation")
	}
}
