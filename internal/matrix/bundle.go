// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package matrix builds the sparse deck-card incidence matrix the similarity
// engine trains on.
//
// Construction is deterministic: rows follow deck ids sorted lexicographically
// and columns follow oracle ids sorted lexicographically, so identical input
// yields a bit-identical bundle and a stable fingerprint for cache keying.
package matrix

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/logging"
)

// Config holds matrix-builder parameters.
type Config struct {
	// MinCardFrequency drops cards whose total quantity across the corpus
	// is below this threshold.
	MinCardFrequency int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{MinCardFrequency: 1}
}

// Bundle is the sparse deck-card matrix plus its lookup tables and global
// statistics. Rows are decks, columns are cards, values are quantities.
// A Bundle is never mutated after Build returns.
type Bundle struct {
	// CardIDs holds the column oracle ids in sorted order.
	CardIDs []string

	// DeckIDs holds the row deck ids in sorted order.
	DeckIDs []string

	// CardIndex maps oracle id to column position.
	CardIndex map[string]int

	// DeckIndex maps deck id to row position.
	DeckIndex map[string]int

	// CSR layout: row i spans Values[RowPtr[i]:RowPtr[i+1]] with column
	// positions in ColIdx, sorted ascending within each row.
	RowPtr []int
	ColIdx []int
	Values []float64

	// CSC layout over the same entries: column j spans
	// ColValues[ColPtr[j]:ColPtr[j+1]] with row positions in RowIdx.
	ColPtr    []int
	RowIdx    []int
	ColValues []float64

	// CardTotals holds per-column quantity sums. These are the cosine
	// denominators used by the similarity engine.
	CardTotals []float64

	// GlobalFreq holds per-column quantity sums divided by the row count.
	GlobalFreq []float64

	// Fingerprint is a SHA-256 digest of the bundle contents, used to key
	// the similarity cache.
	Fingerprint string
}

// Build creates the deck-card matrix from the dataset.
func Build(ds *dataset.Dataset, cfg Config) (*Bundle, error) {
	if cfg.MinCardFrequency < 1 {
		return nil, fmt.Errorf("min card frequency must be positive, got %d", cfg.MinCardFrequency)
	}

	totals := make(map[string]float64)
	for i := range ds.Decks {
		for id, count := range ds.Decks[i].CardCounts {
			totals[id] += float64(count)
		}
	}

	cardIDs := make([]string, 0, len(totals))
	for id, total := range totals {
		if total >= float64(cfg.MinCardFrequency) {
			cardIDs = append(cardIDs, id)
		}
	}
	sort.Strings(cardIDs)

	deckIDs := make([]string, len(ds.Decks))
	for i := range ds.Decks {
		deckIDs[i] = ds.Decks[i].DeckID
	}
	sort.Strings(deckIDs)

	cardIndex := make(map[string]int, len(cardIDs))
	for i, id := range cardIDs {
		cardIndex[id] = i
	}
	deckIndex := make(map[string]int, len(deckIDs))
	for i, id := range deckIDs {
		deckIndex[id] = i
	}

	decksByID := make(map[string]*dataset.Deck, len(ds.Decks))
	for i := range ds.Decks {
		decksByID[ds.Decks[i].DeckID] = &ds.Decks[i]
	}

	b := &Bundle{
		CardIDs:   cardIDs,
		DeckIDs:   deckIDs,
		CardIndex: cardIndex,
		DeckIndex: deckIndex,
		RowPtr:    make([]int, 1, len(deckIDs)+1),
	}

	for _, deckID := range deckIDs {
		deck := decksByID[deckID]
		cols := make([]int, 0, len(deck.CardCounts))
		for id := range deck.CardCounts {
			if col, ok := cardIndex[id]; ok {
				cols = append(cols, col)
			}
		}
		sort.Ints(cols)
		for _, col := range cols {
			b.ColIdx = append(b.ColIdx, col)
			b.Values = append(b.Values, float64(deck.CardCounts[cardIDs[col]]))
		}
		b.RowPtr = append(b.RowPtr, len(b.ColIdx))
	}

	b.buildColumns()

	b.CardTotals = make([]float64, len(cardIDs))
	b.GlobalFreq = make([]float64, len(cardIDs))
	for j := range cardIDs {
		sum := 0.0
		for p := b.ColPtr[j]; p < b.ColPtr[j+1]; p++ {
			sum += b.ColValues[p]
		}
		b.CardTotals[j] = sum
		if len(deckIDs) > 0 {
			b.GlobalFreq[j] = sum / float64(len(deckIDs))
		}
	}

	b.Fingerprint = b.fingerprint()

	log := logging.With("matrix")
	log.Info().
		Int("decks", len(deckIDs)).
		Int("cards", len(cardIDs)).
		Int("entries", len(b.Values)).
		Str("fingerprint", b.Fingerprint[:12]).
		Msg("matrix built")

	return b, nil
}

// buildColumns derives the CSC layout from the CSR entries.
func (b *Bundle) buildColumns() {
	numCards := len(b.CardIDs)
	counts := make([]int, numCards)
	for _, col := range b.ColIdx {
		counts[col]++
	}

	b.ColPtr = make([]int, numCards+1)
	for j := 0; j < numCards; j++ {
		b.ColPtr[j+1] = b.ColPtr[j] + counts[j]
	}

	b.RowIdx = make([]int, len(b.ColIdx))
	b.ColValues = make([]float64, len(b.Values))
	next := make([]int, numCards)
	copy(next, b.ColPtr[:numCards])

	for row := 0; row < len(b.DeckIDs); row++ {
		for p := b.RowPtr[row]; p < b.RowPtr[row+1]; p++ {
			col := b.ColIdx[p]
			pos := next[col]
			b.RowIdx[pos] = row
			b.ColValues[pos] = b.Values[p]
			next[col]++
		}
	}
}

// fingerprint hashes the index tables and matrix entries.
func (b *Bundle) fingerprint() string {
	h := sha256.New()
	var buf [8]byte

	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}

	writeInt(len(b.DeckIDs))
	for _, id := range b.DeckIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	writeInt(len(b.CardIDs))
	for _, id := range b.CardIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	for _, p := range b.RowPtr {
		writeInt(p)
	}
	for i, col := range b.ColIdx {
		writeInt(col)
		writeFloat(b.Values[i])
	}

	return hex.EncodeToString(h.Sum(nil))
}

// NumDecks returns the row count.
func (b *Bundle) NumDecks() int { return len(b.DeckIDs) }

// NumCards returns the column count.
func (b *Bundle) NumCards() int { return len(b.CardIDs) }

// CardTotal returns the quantity sum for a card, 0 when unknown.
func (b *Bundle) CardTotal(oracleID string) float64 {
	if col, ok := b.CardIndex[oracleID]; ok {
		return b.CardTotals[col]
	}
	return 0
}

// GlobalFrequency returns the card's column sum divided by the deck count,
// 0 when unknown.
func (b *Bundle) GlobalFrequency(oracleID string) float64 {
	if col, ok := b.CardIndex[oracleID]; ok {
		return b.GlobalFreq[col]
	}
	return 0
}

// Column returns the row positions and values of one card column.
func (b *Bundle) Column(col int) (rows []int, values []float64) {
	lo, hi := b.ColPtr[col], b.ColPtr[col+1]
	return b.RowIdx[lo:hi], b.ColValues[lo:hi]
}

// Row returns the column positions and values of one deck row.
func (b *Bundle) Row(row int) (cols []int, values []float64) {
	lo, hi := b.RowPtr[row], b.RowPtr[row+1]
	return b.ColIdx[lo:hi], b.Values[lo:hi]
}
