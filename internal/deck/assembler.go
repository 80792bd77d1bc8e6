// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package deck turns ranked candidate scores into deliverables: a ranked
// suggestion list, a greedy completion up to the target deck size, and swap
// suggestions for finished decks.
//
// Completion re-ranks the surviving candidate pool every iteration because
// each pick shifts the deck's role and curve composition; a list ranked once
// against the seed would keep recommending the role that was missing at the
// start.
package deck

import (
	"fmt"
	"math"
	"sort"

	"github.com/TrevanC/MTGrec/internal/constraint"
	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/logging"
	"github.com/TrevanC/MTGrec/internal/scoring"
)

// Config holds the assembly parameters.
type Config struct {
	// TargetSize is the completed deck size including commanders.
	TargetSize int

	// RankedListSize is the number of suggestions returned in list mode.
	RankedListSize int

	// MaxSwaps bounds the number of swap suggestions per request.
	MaxSwaps int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TargetSize:     100,
		RankedListSize: 25,
		MaxSwaps:       5,
	}
}

// Validate checks the assembly parameters.
func (c Config) Validate() error {
	if c.TargetSize < 1 {
		return fmt.Errorf("target_size must be positive, got %d", c.TargetSize)
	}
	if c.RankedListSize < 1 {
		return fmt.Errorf("ranked_list_size must be positive, got %d", c.RankedListSize)
	}
	if c.MaxSwaps < 0 {
		return fmt.Errorf("max_swaps must be non-negative, got %d", c.MaxSwaps)
	}
	return nil
}

// Completion is the result of filling a seed deck up to the target size.
type Completion struct {
	// Added lists the picks in pick order. Composite reflects the adjusted
	// score at the moment the card was picked.
	Added []scoring.CandidateScore `json:"added"`

	// CardCounts is the completed deck, commanders included.
	CardCounts map[string]int `json:"card_counts"`

	Issues []dataset.Issue `json:"issues,omitempty"`
}

// Swap pairs a cut with its replacement.
type Swap struct {
	Remove       string                 `json:"remove"`
	RemoveName   string                 `json:"remove_name"`
	RemoveReason string                 `json:"remove_reason"`
	Add          scoring.CandidateScore `json:"add"`
}

// Assembler builds deliverables from scored candidates.
type Assembler struct {
	scorer  *scoring.Scorer
	checker *constraint.Checker
	shape   *constraint.ShapeEvaluator
	cards   map[string]dataset.Card

	globalFreq func(oracleID string) float64

	scoringCfg scoring.Config
	cfg        Config
}

// NewAssembler wires the deck assembler.
func NewAssembler(
	scorer *scoring.Scorer,
	checker *constraint.Checker,
	shape *constraint.ShapeEvaluator,
	cards map[string]dataset.Card,
	globalFreq func(oracleID string) float64,
	scoringCfg scoring.Config,
	cfg Config,
) *Assembler {
	return &Assembler{
		scorer:     scorer,
		checker:    checker,
		shape:      shape,
		cards:      cards,
		globalFreq: globalFreq,
		scoringCfg: scoringCfg,
		cfg:        cfg,
	}
}

// RankedList returns the top suggestions for the seed, best first.
func (a *Assembler) RankedList(seed *dataset.Deck) ([]scoring.CandidateScore, []dataset.Issue) {
	scored, issues := a.scorer.Score(seed)
	if len(scored) > a.cfg.RankedListSize {
		scored = scored[:a.cfg.RankedListSize]
	}
	return scored, issues
}

// Complete fills the seed up to the target size, one greedy pick at a time.
// If the candidate pool runs dry before the target, the partial result is
// returned with an exhausted issue rather than an error.
func (a *Assembler) Complete(seed *dataset.Deck) (*Completion, []dataset.Issue) {
	scored, issues := a.scorer.Score(seed)

	counts := make(map[string]int, len(seed.CardCounts))
	size := 0
	for id, n := range seed.CardCounts {
		counts[id] = n
		size += n
	}

	state := constraint.NewShapeState(seed, a.cards)

	pool := make([]scoring.CandidateScore, len(scored))
	copy(pool, scored)

	result := &Completion{CardCounts: counts}

	for size < a.cfg.TargetSize {
		pick := a.pickBest(pool, seed, counts, state, "")
		if pick < 0 {
			issue := dataset.Issue{
				Kind:   dataset.IssueExhausted,
				Detail: fmt.Sprintf("candidate pool exhausted at %d of %d cards", size, a.cfg.TargetSize),
			}
			result.Issues = append(result.Issues, issue)
			log := logging.With("deck")
			log.Warn().
				Int("size", size).
				Int("target", a.cfg.TargetSize).
				Msg("completion exhausted candidate pool")
			break
		}

		chosen := pool[pick]
		card := a.cards[chosen.OracleID]

		counts[chosen.OracleID]++
		size++
		state.Add(&card)
		result.Added = append(result.Added, chosen)

		// Basic lands stay in the pool so mana bases can fill out; anything
		// else is singleton and leaves.
		if !card.IsBasicLand() {
			pool = append(pool[:pick], pool[pick+1:]...)
		}
	}

	issues = append(issues, result.Issues...)
	return result, issues
}

// pickBest re-ranks the pool against the current deck state and returns the
// index of the best eligible candidate, or -1 when none qualifies. exclude
// names a card that may not be picked this round.
func (a *Assembler) pickBest(pool []scoring.CandidateScore, seed *dataset.Deck, counts map[string]int, state *constraint.ShapeState, exclude string) int {
	best := -1
	var bestScore scoring.CandidateScore

	for i := range pool {
		if pool[i].OracleID == exclude {
			continue
		}
		card, ok := a.cards[pool[i].OracleID]
		if !ok {
			continue
		}
		if !a.checker.IsEligible(pool[i].OracleID, seed, counts) {
			continue
		}

		adjusted := pool[i]
		adjusted.Shape = a.shape.Penalty(state, &card)
		adjusted.Composite = adjusted.Base - adjusted.Shape*a.scoringCfg.ShapeWeight

		if best < 0 || lessCandidate(&bestScore, &adjusted) {
			best = i
			bestScore = adjusted
		}
	}

	if best >= 0 {
		pool[best] = bestScore
	}
	return best
}

// lessCandidate reports whether b outranks a under the candidate ordering.
func lessCandidate(a, b *scoring.CandidateScore) bool {
	if a.Composite != b.Composite {
		return b.Composite > a.Composite
	}
	if a.Commander != b.Commander {
		return b.Commander > a.Commander
	}
	if a.Frequency != b.Frequency {
		return b.Frequency > a.Frequency
	}
	return b.Name < a.Name
}

// SuggestSwaps proposes up to MaxSwaps cut-and-replace pairs for a finished
// deck. Cuts are the cards cheapest to lose: rarely played across the corpus
// and whose removal does not open a role gap. Commanders are never cut.
func (a *Assembler) SuggestSwaps(seed *dataset.Deck) ([]Swap, []dataset.Issue) {
	scored, issues := a.scorer.Score(seed)
	if len(scored) == 0 {
		return nil, issues
	}

	counts := make(map[string]int, len(seed.CardCounts))
	for id, n := range seed.CardCounts {
		counts[id] = n
	}
	state := constraint.NewShapeState(seed, a.cards)

	pool := make([]scoring.CandidateScore, len(scored))
	copy(pool, scored)

	// Cards brought in by an earlier swap are protected from later cuts so
	// the loop cannot churn its own suggestions.
	protected := make(map[string]struct{})

	var swaps []Swap
	for len(swaps) < a.cfg.MaxSwaps {
		removeID, removeCost := a.pickCut(seed, counts, protected)
		if removeID == "" {
			break
		}

		removed := a.cards[removeID]
		counts[removeID]--
		if counts[removeID] <= 0 {
			delete(counts, removeID)
		}
		state.Remove(&removed)

		pick := a.pickBest(pool, seed, counts, state, removeID)
		if pick < 0 || pool[pick].Composite <= removeCost {
			// Nothing in the pool beats the weakest card; put it back.
			counts[removeID]++
			state.Add(&removed)
			break
		}

		chosen := pool[pick]
		card := a.cards[chosen.OracleID]
		counts[chosen.OracleID]++
		state.Add(&card)
		protected[chosen.OracleID] = struct{}{}
		if !card.IsBasicLand() {
			pool = append(pool[:pick], pool[pick+1:]...)
		}

		swaps = append(swaps, Swap{
			Remove:       removeID,
			RemoveName:   removed.Name,
			RemoveReason: "lowest play rate among cards whose removal keeps the deck's roles covered",
			Add:          chosen,
		})
	}

	return swaps, issues
}

// pickCut returns the deck card cheapest to remove and its cost. Cost is the
// card's corpus popularity plus any role gap its removal would open.
// Commanders and protected cards are never cut.
func (a *Assembler) pickCut(seed *dataset.Deck, counts map[string]int, protected map[string]struct{}) (string, float64) {
	type cut struct {
		oracleID string
		cost     float64
	}
	var cuts []cut

	roles := rolesOf(counts, a.cards)
	for id, n := range counts {
		if n <= 0 || seed.IsCommander(id) {
			continue
		}
		if _, ok := protected[id]; ok {
			continue
		}
		card, ok := a.cards[id]
		if !ok {
			continue
		}
		cost := math.Log1p(a.globalFreq(id))
		if gap := -a.shape.RoleDelta(roles, &card, -1); gap > 0 {
			cost += gap
		}
		cuts = append(cuts, cut{oracleID: id, cost: cost})
	}
	if len(cuts) == 0 {
		return "", 0
	}

	sort.Slice(cuts, func(i, j int) bool {
		if cuts[i].cost != cuts[j].cost {
			return cuts[i].cost < cuts[j].cost
		}
		return cuts[i].oracleID < cuts[j].oracleID
	})
	return cuts[0].oracleID, cuts[0].cost
}

// rolesOf tallies role counts for the working card counts.
func rolesOf(counts map[string]int, cards map[string]dataset.Card) map[string]int {
	roles := make(map[string]int)
	for id, n := range counts {
		card, ok := cards[id]
		if !ok {
			continue
		}
		for _, role := range card.Roles {
			roles[role] += n
		}
	}
	return roles
}
