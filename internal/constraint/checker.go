// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package constraint enforces Commander legality rules and scores deck-shape
// deviations.
//
// Hard filters reject a candidate outright: ban list, commander legality,
// color identity subset, and the singleton rule with its basic-land
// exemption. Shape deviations are soft penalties applied by the scoring
// blender; they reduce a score but never exclude a card.
package constraint

import (
	"github.com/TrevanC/MTGrec/internal/dataset"
)

// Checker validates candidate cards against hard Commander format rules.
type Checker struct {
	cards   map[string]dataset.Card
	banList map[string]struct{}
}

// NewChecker creates a Checker over the dataset's cards and ban list.
func NewChecker(cards map[string]dataset.Card, banList map[string]struct{}) *Checker {
	if banList == nil {
		banList = make(map[string]struct{})
	}
	return &Checker{cards: cards, banList: banList}
}

// IsEligible reports whether the candidate may be added to the deck. counts
// overrides the deck's card counts during incremental assembly; pass nil to
// check against the deck as-is.
func (c *Checker) IsEligible(candidateID string, deck *dataset.Deck, counts map[string]int) bool {
	if _, banned := c.banList[candidateID]; banned {
		return false
	}

	card, ok := c.cards[candidateID]
	if !ok {
		return false
	}

	if !card.CommanderLegal {
		return false
	}

	if len(deck.ColorIdentity) > 0 && !dataset.ColorSubset(card.ColorIdentity, deck.ColorIdentity) {
		return false
	}

	if counts == nil {
		counts = deck.CardCounts
	}
	if counts[candidateID] > 0 && !card.IsBasicLand() {
		return false
	}

	return true
}
