// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package similarity computes item-item cosine similarity over the deck-card
// matrix columns and caches the top-K neighbors per card.
//
// Raw cosine scores are discounted by overlap shrinkage so rare-card pairs
// that co-occur in only a handful of decks cannot produce spuriously high
// similarity. Column computations are independent and fanned out across
// workers; the fitted model is immutable and safe for concurrent reads.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TrevanC/MTGrec/internal/logging"
	"github.com/TrevanC/MTGrec/internal/matrix"
)

// ErrNotFitted is returned when a model is queried before Fit.
var ErrNotFitted = errors.New("similarity model not fitted")

// Config holds the similarity hyperparameters.
type Config struct {
	// TopK is the number of neighbors retained per card.
	TopK int

	// MinOverlap is the minimum number of decks containing both cards for
	// a pair to be scored at all.
	MinOverlap int

	// Shrinkage discounts low-overlap pairs:
	// shrunk = cosine * overlap / (overlap + shrinkage).
	Shrinkage float64

	// NumWorkers is the fit-phase parallelism. 0 means runtime.NumCPU().
	NumWorkers int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TopK:       200,
		MinOverlap: 2,
		Shrinkage:  0.5,
		NumWorkers: 0,
	}
}

// Validate checks the hyperparameters.
func (c Config) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.MinOverlap < 1 {
		return fmt.Errorf("min_overlap must be positive, got %d", c.MinOverlap)
	}
	if c.Shrinkage < 0 {
		return fmt.Errorf("shrinkage must be non-negative, got %f", c.Shrinkage)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("num_workers must be non-negative, got %d", c.NumWorkers)
	}
	return nil
}

// Neighbor is one entry of a card's top-K neighbor list.
type Neighbor struct {
	OracleID string
	Score    float64
}

// Model holds the per-card top-K neighbor cache. Immutable once fitted.
type Model struct {
	cfg         Config
	neighbors   map[string][]Neighbor
	fingerprint string
	fitted      bool
}

// New creates an unfitted model.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Config returns the model's hyperparameters.
func (m *Model) Config() Config { return m.cfg }

// Fitted reports whether the model has been fitted or loaded.
func (m *Model) Fitted() bool { return m.fitted }

// Fingerprint returns the fingerprint of the bundle the model was fitted on.
func (m *Model) Fingerprint() string { return m.fingerprint }

// Neighbors returns the cached neighbor list for a card, best first. The
// returned slice must not be modified.
func (m *Model) Neighbors(oracleID string) []Neighbor {
	return m.neighbors[oracleID]
}

// NumCards returns the number of cards with a computed neighbor list.
func (m *Model) NumCards() int { return len(m.neighbors) }

// Fit computes the shrunk cosine similarities over the bundle's columns and
// retains the top-K neighbors per card. The underlying score is symmetric;
// only the per-card top-K truncation is not.
func (m *Model) Fit(ctx context.Context, b *matrix.Bundle) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	start := time.Now()
	numCards := b.NumCards()
	results := make([][]Neighbor, numCards)

	workers := m.cfg.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > numCards && numCards > 0 {
		workers = numCards
	}

	g, ctx := errgroup.WithContext(ctx)
	chunkSize := 0
	if workers > 0 {
		chunkSize = (numCards + workers - 1) / workers
	}

	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > numCards {
			hi = numCards
		}
		if lo >= hi {
			break
		}

		g.Go(func() error {
			for col := lo; col < hi; col++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[col] = m.columnNeighbors(b, col)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("similarity fit: %w", err)
	}

	neighbors := make(map[string][]Neighbor, numCards)
	for col, list := range results {
		neighbors[b.CardIDs[col]] = list
	}

	m.neighbors = neighbors
	m.fingerprint = b.Fingerprint
	m.fitted = true

	log := logging.With("similarity")
	log.Info().
		Int("cards", numCards).
		Int("workers", workers).
		Dur("elapsed", time.Since(start)).
		Str("fingerprint", shortFingerprint(b.Fingerprint)).
		Msg("similarity model fitted")

	return nil
}

// columnNeighbors scores every co-occurring card against one column and
// returns its top-K list.
func (m *Model) columnNeighbors(b *matrix.Bundle, col int) []Neighbor {
	denom := math.Sqrt(b.CardTotals[col])
	if denom == 0 {
		return nil
	}

	dot := make(map[int]float64)
	overlap := make(map[int]int)

	rows, values := b.Column(col)
	for i, row := range rows {
		va := values[i]
		cols, rowValues := b.Row(row)
		for j, other := range cols {
			if other == col {
				continue
			}
			dot[other] += va * rowValues[j]
			overlap[other]++
		}
	}

	candidates := make([]Neighbor, 0, len(dot))
	for other, dotValue := range dot {
		count := overlap[other]
		if count < m.cfg.MinOverlap {
			continue
		}
		otherDenom := math.Sqrt(b.CardTotals[other])
		if otherDenom == 0 {
			continue
		}
		score := dotValue / (denom * otherDenom)
		score *= float64(count) / (float64(count) + m.cfg.Shrinkage)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Neighbor{OracleID: b.CardIDs[other], Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].OracleID < candidates[j].OracleID
	})

	if len(candidates) > m.cfg.TopK {
		candidates = candidates[:m.cfg.TopK]
	}
	return candidates
}

// shortFingerprint truncates a fingerprint for log fields and file names.
func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
