// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package constraint

import (
	"github.com/TrevanC/MTGrec/internal/dataset"
)

// Functional role tags with configured targets.
const (
	RoleLand    = "Land"
	RoleRamp    = "Ramp"
	RoleDraw    = "Draw"
	RoleRemoval = "Removal"
)

// CurveBuckets is the number of mana-value buckets: 0-1, 2, 3, 4, 5, 6, 7+.
const CurveBuckets = 7

// ShapeTarget holds the desired role counts and mana-curve shares.
type ShapeTarget struct {
	Lands   int
	Ramp    int
	Draw    int
	Removal int

	// Curve is the target share of nonland cards per mana-value bucket.
	// Empty disables the curve penalty.
	Curve []float64
}

// DefaultShapeTarget returns typical midrange Commander targets.
func DefaultShapeTarget() ShapeTarget {
	return ShapeTarget{
		Lands:   38,
		Ramp:    10,
		Draw:    10,
		Removal: 10,
		Curve:   []float64{0.15, 0.25, 0.25, 0.15, 0.10, 0.05, 0.05},
	}
}

// roleTargets pairs each tracked role with its target count.
func (t ShapeTarget) roleTargets() [4]struct {
	role   string
	target int
} {
	return [4]struct {
		role   string
		target int
	}{
		{RoleLand, t.Lands},
		{RoleRamp, t.Ramp},
		{RoleDraw, t.Draw},
		{RoleRemoval, t.Removal},
	}
}

// CurveBucket maps a mana value to its curve bucket.
func CurveBucket(manaValue float64) int {
	switch {
	case manaValue <= 1:
		return 0
	case manaValue >= 7:
		return 6
	default:
		return int(manaValue) - 1
	}
}

// ShapeState tracks the mutable deck composition during assembly.
type ShapeState struct {
	RoleCounts  map[string]int
	CurveCounts [CurveBuckets]int
	Nonland     int
}

// NewShapeState derives the composition of an existing deck.
func NewShapeState(deck *dataset.Deck, cards map[string]dataset.Card) *ShapeState {
	state := &ShapeState{RoleCounts: make(map[string]int, len(deck.RoleCounts))}
	for role, count := range deck.RoleCounts {
		state.RoleCounts[role] = count
	}

	for id, count := range deck.CardCounts {
		card, ok := cards[id]
		if !ok || isLand(&card) {
			continue
		}
		state.CurveCounts[CurveBucket(card.ManaValue)] += count
		state.Nonland += count
	}
	return state
}

// Add applies one copy of the card to the state.
func (s *ShapeState) Add(card *dataset.Card) { s.apply(card, 1) }

// Remove takes one copy of the card out of the state.
func (s *ShapeState) Remove(card *dataset.Card) { s.apply(card, -1) }

func (s *ShapeState) apply(card *dataset.Card, delta int) {
	for _, role := range card.Roles {
		s.RoleCounts[role] += delta
		if s.RoleCounts[role] <= 0 {
			delete(s.RoleCounts, role)
		}
	}
	if !isLand(card) {
		s.CurveCounts[CurveBucket(card.ManaValue)] += delta
		s.Nonland += delta
	}
}

// ShapeEvaluator scores how adding or cutting a card moves the deck toward
// or away from the target shape.
type ShapeEvaluator struct {
	target ShapeTarget
}

// NewShapeEvaluator creates an evaluator for the given targets.
func NewShapeEvaluator(target ShapeTarget) *ShapeEvaluator {
	return &ShapeEvaluator{target: target}
}

// RoleDelta evaluates the signed impact of adding (delta=1) or removing
// (delta=-1) the card on role balance. Positive values close a gap toward a
// target, negative values widen one.
func (e *ShapeEvaluator) RoleDelta(roleCounts map[string]int, card *dataset.Card, delta int) float64 {
	score := 0.0
	for _, rt := range e.target.roleTargets() {
		if !card.HasRole(rt.role) {
			continue
		}
		score += roleGapChange(roleCounts[rt.role], rt.target, delta)
	}
	return score
}

// Penalty returns the non-negative soft penalty for adding the card to the
// deck in its current state. Candidates filling an underrepresented role pay
// nothing; candidates piling onto an overrepresented role or an overfull
// curve bucket pay proportionally.
func (e *ShapeEvaluator) Penalty(state *ShapeState, card *dataset.Card) float64 {
	penalty := -e.RoleDelta(state.RoleCounts, card, 1)
	if penalty < 0 {
		penalty = 0
	}

	if len(e.target.Curve) == CurveBuckets && !isLand(card) {
		bucket := CurveBucket(card.ManaValue)
		after := float64(state.CurveCounts[bucket]+1) / float64(state.Nonland+1)
		if overshoot := after - e.target.Curve[bucket]; overshoot > 0 {
			penalty += overshoot
		}
	}

	return penalty
}

// roleGapChange rewards moves that close the gap to the target and penalizes
// overshoot, normalized by the target size.
func roleGapChange(current, target, delta int) float64 {
	beforeGap := current - target
	afterGap := current + delta - target
	scale := target
	if scale < 1 {
		scale = 1
	}
	return float64(absInt(beforeGap)-absInt(afterGap)) / float64(scale)
}

func isLand(card *dataset.Card) bool {
	return card.HasType("Land") || card.HasRole(RoleLand)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
