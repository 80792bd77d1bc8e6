// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/TrevanC/MTGrec/internal/config"
	"github.com/TrevanC/MTGrec/internal/dataset"
)

func testDocument() *dataset.Document {
	return &dataset.Document{
		Cards: map[string]dataset.DocumentCard{
			"korvold":  {Name: "Korvold, Fae-Cursed King", ColorIdentity: []string{"B", "G", "R"}, Types: []string{"Legendary", "Creature"}, ManaValue: 5, CommanderLegal: true},
			"dockside": {Name: "Dockside Extortionist", ColorIdentity: []string{"R"}, Types: []string{"Creature"}, ManaValue: 2, CommanderLegal: true},
			"solring":  {Name: "Sol Ring", Types: []string{"Artifact"}, Roles: []string{"Ramp"}, ManaValue: 1, CommanderLegal: true},
			"rampant":  {Name: "Rampant Growth", ColorIdentity: []string{"G"}, Types: []string{"Sorcery"}, Roles: []string{"Ramp"}, ManaValue: 2, CommanderLegal: true},
			"mountain": {Name: "Mountain", ColorIdentity: []string{"R"}, Types: []string{"Basic", "Land"}, Roles: []string{"Land"}, CommanderLegal: true},
		},
		Decks: []dataset.DocumentDeck{
			{DeckID: "d1", Commanders: []string{"korvold"}, CardCounts: map[string]int{"korvold": 1, "dockside": 1, "solring": 1, "mountain": 2}},
			{DeckID: "d2", Commanders: []string{"korvold"}, CardCounts: map[string]int{"korvold": 1, "dockside": 1, "solring": 1, "mountain": 2}},
			{DeckID: "d3", Commanders: []string{"korvold"}, CardCounts: map[string]int{"korvold": 1, "dockside": 1, "rampant": 1, "mountain": 2}},
		},
	}
}

func testEngine(t *testing.T) *Engine {
	return testEngineWith(t, nil)
}

func testEngineWith(t *testing.T, mutate func(*config.Config)) *Engine {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	data, err := json.Marshal(testDocument())
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}

	cfg := config.Default()
	cfg.Data.DatasetPath = path
	cfg.Data.CacheDir = filepath.Join(dir, "cache")
	cfg.Similarity.MinOverlap = 1
	cfg.Similarity.NumWorkers = 1
	cfg.Deck.TargetSize = 10
	if mutate != nil {
		mutate(cfg)
	}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e.LoadAndTrain(context.Background(), false); err != nil {
		t.Fatalf("train: %v", err)
	}
	return e
}

func TestEngineNotReady(t *testing.T) {
	cfg := config.Default()
	cfg.Data.CacheDir = t.TempDir()

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if e.Ready() {
		t.Error("engine ready before training")
	}
	if _, err := e.Recommend(context.Background(), &RecommendRequest{Seed: []string{"Sol Ring"}}); !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestRecommendResolvesNames(t *testing.T) {
	e := testEngine(t)

	resp, err := e.Recommend(context.Background(), &RecommendRequest{
		Seed:       []string{"Korvold, Fae-Cursed King", "Dockside Extortionist"},
		Commanders: []string{"korvold"},
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if len(resp.Suggestions) == 0 {
		t.Fatal("no suggestions")
	}
	if resp.RequestID == "" {
		t.Error("missing request id")
	}
	if len(resp.Commanders) != 1 || resp.Commanders[0].OracleID != "korvold" {
		t.Errorf("commanders = %v, want korvold", resp.Commanders)
	}
	for _, s := range resp.Suggestions {
		if s.OracleID == "korvold" || s.OracleID == "dockside" {
			t.Errorf("seed card %s suggested", s.OracleID)
		}
	}
}

func TestRecommendDetectsCommander(t *testing.T) {
	e := testEngine(t)

	resp, err := e.Recommend(context.Background(), &RecommendRequest{
		Seed: []string{"Sol Ring", "Korvold, Fae-Cursed King"},
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(resp.Commanders) != 1 || resp.Commanders[0].OracleID != "korvold" {
		t.Errorf("commanders = %v, want detected korvold", resp.Commanders)
	}
}

func TestRecommendUnresolved(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	// Strict mode fails the request.
	_, err := e.Recommend(ctx, &RecommendRequest{
		Seed: []string{"Sol Ring", "NotACard123"},
	})
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}

	// Permissive mode reports the failure as data and serves the rest.
	resp, err := e.Recommend(ctx, &RecommendRequest{
		Seed:            []string{"Sol Ring", "NotACard123"},
		AllowUnresolved: true,
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(resp.Unresolved) != 1 || resp.Unresolved[0].Input != "NotACard123" {
		t.Fatalf("unresolved = %v, want NotACard123", resp.Unresolved)
	}

	var hasUnknown bool
	for _, issue := range resp.Issues {
		if issue.Kind == dataset.IssueUnknownCard {
			hasUnknown = true
		}
	}
	if !hasUnknown {
		t.Error("missing unknown_card issue")
	}
	if len(resp.Suggestions) == 0 {
		t.Error("resolved seed cards should still produce suggestions")
	}
}

func TestRecommendPenalizesSaturatedRole(t *testing.T) {
	// One ramp card already meets the target, so another ramp candidate
	// must pay the overshoot penalty. The curve penalty is disabled to
	// isolate the role component.
	e := testEngineWith(t, func(cfg *config.Config) {
		cfg.Shape.Ramp = 1
		cfg.Shape.Curve = nil
	})

	resp, err := e.Recommend(context.Background(), &RecommendRequest{
		Seed: []string{"Korvold, Fae-Cursed King", "Sol Ring"},
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	var found bool
	for _, s := range resp.Suggestions {
		if s.OracleID != "rampant" {
			continue
		}
		found = true
		if s.Shape <= 0 {
			t.Errorf("shape penalty = %f, want positive for a second ramp card", s.Shape)
		}
	}
	if !found {
		t.Fatal("rampant growth missing from suggestions")
	}
}

func TestRecommendEmptySeed(t *testing.T) {
	e := testEngine(t)

	_, err := e.Recommend(context.Background(), &RecommendRequest{
		Seed:            []string{"NotACard123"},
		AllowUnresolved: true,
	})
	if !errors.Is(err, ErrEmptySeed) {
		t.Errorf("err = %v, want ErrEmptySeed", err)
	}
}

func TestCompleteDeckReachesTarget(t *testing.T) {
	e := testEngine(t)

	resp, err := e.CompleteDeck(context.Background(), &RecommendRequest{
		Seed: []string{"Korvold, Fae-Cursed King", "Dockside Extortionist"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	size := 0
	for _, n := range resp.CardCounts {
		size += n
	}
	if size != 10 {
		t.Errorf("completed size = %d, want 10", size)
	}
}

func TestValidateDecklist(t *testing.T) {
	e := testEngine(t)

	text := "1 Sol Ring\n2 Mountain\n1 NotACard123\n"
	resp, err := e.ValidateDecklist(context.Background(), text)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if len(resp.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(resp.Entries))
	}
	if len(resp.Unresolved) != 1 {
		t.Fatalf("unresolved = %v, want one entry", resp.Unresolved)
	}

	var undersized bool
	for _, issue := range resp.Issues {
		if issue.Kind == dataset.IssueDeckSize {
			undersized = true
		}
	}
	if !undersized {
		t.Error("expected a deck_size issue for a 4-card list")
	}
}

func TestEvaluateProducesMetrics(t *testing.T) {
	e := testEngine(t)

	resp, err := e.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for k, p := range resp.Result.Precision {
		if p < 0 || p > 1 {
			t.Errorf("precision@%d = %f, out of [0, 1]", k, p)
		}
	}
}

func TestRetrainUsesCache(t *testing.T) {
	e := testEngine(t)
	first := e.Snapshot()

	if err := e.LoadAndTrain(context.Background(), false); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	second := e.Snapshot()

	if second.Version <= first.Version {
		t.Errorf("version = %d, want above %d", second.Version, first.Version)
	}
	if second.Model.Fingerprint() != first.Model.Fingerprint() {
		t.Error("fingerprint changed on identical dataset")
	}
}
