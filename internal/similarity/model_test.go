// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package similarity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/matrix"
)

// testBundle builds a matrix over three decks:
// deck-1 {a, b}, deck-2 {a, b}, deck-3 {a, c}.
func testBundle(t *testing.T) *matrix.Bundle {
	t.Helper()

	ds := &dataset.Dataset{
		Decks: []dataset.Deck{
			{DeckID: "deck-1", Commanders: []string{"a"}, CardCounts: map[string]int{"a": 1, "b": 1}},
			{DeckID: "deck-2", Commanders: []string{"a"}, CardCounts: map[string]int{"a": 1, "b": 1}},
			{DeckID: "deck-3", Commanders: []string{"a"}, CardCounts: map[string]int{"a": 1, "c": 1}},
		},
		Cards: map[string]dataset.Card{
			"a": {OracleID: "a"}, "b": {OracleID: "b"}, "c": {OracleID: "c"},
		},
	}
	b, err := matrix.Build(ds, matrix.DefaultConfig())
	if err != nil {
		t.Fatalf("matrix build failed: %v", err)
	}
	return b
}

func fitModel(t *testing.T, cfg Config) *Model {
	t.Helper()
	m := New(cfg)
	if err := m.Fit(context.Background(), testBundle(t)); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return m
}

func TestFitShrunkCosine(t *testing.T) {
	m := fitModel(t, Config{TopK: 10, MinOverlap: 2, Shrinkage: 0.5, NumWorkers: 1})

	neighbors := m.Neighbors("a")
	if len(neighbors) != 1 || neighbors[0].OracleID != "b" {
		t.Fatalf("neighbors(a) = %v, want [b]", neighbors)
	}

	// dot(a,b) = 2 over totals a=3, b=2; overlap 2 with shrinkage 0.5.
	want := 2.0 / (math.Sqrt(3) * math.Sqrt(2)) * (2.0 / 2.5)
	if math.Abs(neighbors[0].Score-want) > 1e-12 {
		t.Errorf("score(a,b) = %v, want %v", neighbors[0].Score, want)
	}

	// (a,c) co-occur in a single deck, below the min overlap cutoff.
	for _, n := range neighbors {
		if n.OracleID == "c" {
			t.Error("pair below min overlap must be excluded")
		}
	}
}

func TestFitMinOverlapOne(t *testing.T) {
	m := fitModel(t, Config{TopK: 10, MinOverlap: 1, Shrinkage: 0.5, NumWorkers: 1})

	var got float64
	for _, n := range m.Neighbors("a") {
		if n.OracleID == "c" {
			got = n.Score
		}
	}
	want := 1.0 / (math.Sqrt(3) * 1.0) * (1.0 / 1.5)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("score(a,c) = %v, want %v", got, want)
	}
}

func TestFitSymmetry(t *testing.T) {
	m := fitModel(t, Config{TopK: 10, MinOverlap: 1, Shrinkage: 0.5, NumWorkers: 2})

	score := func(from, to string) (float64, bool) {
		for _, n := range m.Neighbors(from) {
			if n.OracleID == to {
				return n.Score, true
			}
		}
		return 0, false
	}

	for _, pair := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}} {
		ab, okAB := score(pair[0], pair[1])
		ba, okBA := score(pair[1], pair[0])
		if okAB != okBA {
			t.Errorf("pair %v: presence differs under full top-K", pair)
			continue
		}
		if okAB && math.Abs(ab-ba) > 1e-12 {
			t.Errorf("pair %v: %v vs %v", pair, ab, ba)
		}
	}
}

func TestFitTopKBound(t *testing.T) {
	m := fitModel(t, Config{TopK: 1, MinOverlap: 1, Shrinkage: 0.5, NumWorkers: 1})

	for _, id := range []string{"a", "b", "c"} {
		if got := len(m.Neighbors(id)); got > 1 {
			t.Errorf("neighbors(%s) length = %d, exceeds top-K", id, got)
		}
	}
}

func TestFitDeterministic(t *testing.T) {
	cfg := Config{TopK: 10, MinOverlap: 1, Shrinkage: 0.5, NumWorkers: 4}
	m1 := fitModel(t, cfg)
	m2 := fitModel(t, cfg)

	for _, id := range []string{"a", "b", "c"} {
		n1, n2 := m1.Neighbors(id), m2.Neighbors(id)
		if len(n1) != len(n2) {
			t.Fatalf("neighbors(%s) lengths differ: %d vs %d", id, len(n1), len(n2))
		}
		for i := range n1 {
			if n1[i] != n2[i] {
				t.Errorf("neighbors(%s)[%d] = %v vs %v", id, i, n1[i], n2[i])
			}
		}
	}
}

func TestFitInvalidConfig(t *testing.T) {
	m := New(Config{TopK: 0, MinOverlap: 2, Shrinkage: 0.5})
	if err := m.Fit(context.Background(), testBundle(t)); err == nil {
		t.Fatal("expected error for zero top-K")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	m := fitModel(t, Config{TopK: 10, MinOverlap: 2, Shrinkage: 0.5, NumWorkers: 1})

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Save(m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(m.Fingerprint())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Fitted() {
		t.Fatal("loaded model should be fitted")
	}
	if loaded.Fingerprint() != m.Fingerprint() {
		t.Errorf("fingerprint = %s, want %s", loaded.Fingerprint(), m.Fingerprint())
	}

	want := m.Neighbors("a")
	got := loaded.Neighbors("a")
	if len(got) != len(want) {
		t.Fatalf("neighbors(a) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("neighbors(a)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStoreFingerprintMismatchIsMiss(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := store.Load("0000000000000000"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss for absent fingerprint, got %v", err)
	}

	m := fitModel(t, Config{TopK: 10, MinOverlap: 2, Shrinkage: 0.5, NumWorkers: 1})
	if err := store.Save(m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Load("different-fingerprint"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss for different fingerprint, got %v", err)
	}
}

func TestSaveUnfitted(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Save(New(DefaultConfig())); err == nil {
		t.Fatal("expected error saving unfitted model")
	}
}
