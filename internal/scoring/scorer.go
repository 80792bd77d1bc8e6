// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package scoring blends the similarity, commander-prior, global-frequency
// and deck-shape signals into one composite score per candidate card.
//
// Every explanation entry is derived from the same components that produced
// the composite, so truncating an explanation never disagrees with the score.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/TrevanC/MTGrec/internal/constraint"
	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/prior"
	"github.com/TrevanC/MTGrec/internal/similarity"
)

// Config holds the blend weights and candidate limits.
type Config struct {
	SimilarityWeight float64
	CommanderWeight  float64
	FrequencyWeight  float64
	ShapeWeight      float64

	// MaxCandidates caps the scored list. 0 means unlimited.
	MaxCandidates int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityWeight: 0.6,
		CommanderWeight:  0.3,
		FrequencyWeight:  0.1,
		ShapeWeight:      0.05,
		MaxCandidates:    500,
	}
}

// ReasonKind classifies one explanation entry.
type ReasonKind string

// Explanation entry kinds.
const (
	ReasonSimilarity ReasonKind = "similarity"
	ReasonCommander  ReasonKind = "commander"
	ReasonFrequency  ReasonKind = "frequency"
	ReasonShape      ReasonKind = "shape"
	ReasonFallback   ReasonKind = "fallback"
)

// Reason is one explanation entry with its relative weight in the composite.
type Reason struct {
	Kind   ReasonKind `json:"kind"`
	Detail string     `json:"detail"`
	Weight float64    `json:"weight"`
}

// CandidateScore is the composite score for one candidate card with its
// component breakdown. Created per request, discarded after the response.
type CandidateScore struct {
	OracleID string `json:"oracle_id"`
	Name     string `json:"name"`

	// Raw (unweighted) components.
	Similarity float64 `json:"similarity"`
	Commander  float64 `json:"commander"`
	Frequency  float64 `json:"frequency"`
	Shape      float64 `json:"shape"`

	// Base is the weighted sum of the non-shape components. The deck
	// assembler re-derives shape against its evolving state from this.
	Base float64 `json:"-"`

	// Composite = Base - shapeWeight * Shape.
	Composite float64 `json:"composite"`

	Reasons []Reason `json:"reasons,omitempty"`

	// SupportingCards lists the seed cards contributing the most
	// similarity, best first.
	SupportingCards []string `json:"supporting_cards,omitempty"`

	// Roles carries the candidate's tracked role tags.
	Roles []string `json:"roles,omitempty"`
}

// Scorer produces ranked candidate scores for a seed deck.
type Scorer struct {
	model   *similarity.Model
	priors  *prior.Store
	shape   *constraint.ShapeEvaluator
	checker *constraint.Checker
	cards   map[string]dataset.Card

	// globalFreq returns the card's corpus frequency for the staple boost.
	globalFreq func(oracleID string) float64

	cfg Config
}

// NewScorer wires the scoring blender.
func NewScorer(
	model *similarity.Model,
	priors *prior.Store,
	shape *constraint.ShapeEvaluator,
	checker *constraint.Checker,
	cards map[string]dataset.Card,
	globalFreq func(oracleID string) float64,
	cfg Config,
) *Scorer {
	return &Scorer{
		model:      model,
		priors:     priors,
		shape:      shape,
		checker:    checker,
		cards:      cards,
		globalFreq: globalFreq,
		cfg:        cfg,
	}
}

// candidate accumulates per-card evidence during scoring.
type candidate struct {
	similarity float64
	commander  float64
	simSources []simSource
	cmdSources []string
}

type simSource struct {
	oracleID string
	score    float64
}

// Score ranks every eligible candidate for the seed deck. Hard constraints
// are applied here so a returned candidate is always legal for the seed.
// Unknown commanders are reported as issues and the remaining signals carry
// the score.
func (s *Scorer) Score(seed *dataset.Deck) ([]CandidateScore, []dataset.Issue) {
	candidates := make(map[string]*candidate)
	var issues []dataset.Issue

	get := func(oracleID string) *candidate {
		c, ok := candidates[oracleID]
		if !ok {
			c = &candidate{}
			candidates[oracleID] = c
		}
		return c
	}

	// Each seed card contributes its cached similarity to candidates in its
	// top-K; candidates outside every seed card's top-K contribute zero.
	// This trades recall for bounded lookup cost.
	for seedID := range seed.CardCounts {
		for _, n := range s.model.Neighbors(seedID) {
			if seed.Contains(n.OracleID) {
				continue
			}
			c := get(n.OracleID)
			c.similarity += n.Score
			c.simSources = append(c.simSources, simSource{oracleID: seedID, score: n.Score})
		}
	}

	blend := s.priors.Blend(seed.Commanders)
	for _, commanderID := range blend.Unknown {
		issues = append(issues, dataset.Issue{
			Kind:   dataset.IssueUnknownCommander,
			Detail: fmt.Sprintf("no profile for commander %q; scoring without its prior", commanderID),
		})
	}
	for oracleID, weight := range blend.Weights {
		if seed.Contains(oracleID) {
			continue
		}
		c := get(oracleID)
		c.commander = weight
		for _, src := range blend.Sources[oracleID] {
			c.cmdSources = append(c.cmdSources, src.CommanderID)
		}
	}

	state := constraint.NewShapeState(seed, s.cards)

	scored := make([]CandidateScore, 0, len(candidates))
	for oracleID, c := range candidates {
		card, ok := s.cards[oracleID]
		if !ok {
			continue
		}
		if !s.checker.IsEligible(oracleID, seed, nil) {
			continue
		}

		frequency := 0.0
		if f := s.globalFreq(oracleID); f > 0 {
			frequency = math.Log1p(f)
		}
		penalty := s.shape.Penalty(state, &card)

		cs := CandidateScore{
			OracleID:   oracleID,
			Name:       card.Name,
			Similarity: c.similarity,
			Commander:  c.commander,
			Frequency:  frequency,
			Shape:      penalty,
			Roles:      card.Roles,
		}
		cs.Base = cs.Similarity*s.cfg.SimilarityWeight +
			cs.Commander*s.cfg.CommanderWeight +
			cs.Frequency*s.cfg.FrequencyWeight
		cs.Composite = cs.Base - penalty*s.cfg.ShapeWeight
		cs.Reasons, cs.SupportingCards = s.explain(&cs, c, len(blend.Unknown) > 0)

		scored = append(scored, cs)
	}

	SortCandidates(scored)

	if s.cfg.MaxCandidates > 0 && len(scored) > s.cfg.MaxCandidates {
		scored = scored[:s.cfg.MaxCandidates]
	}
	return scored, issues
}

// SortCandidates orders scores by composite, then commander component, then
// global frequency, then name. Never random.
func SortCandidates(scored []CandidateScore) {
	sort.Slice(scored, func(i, j int) bool {
		a, b := &scored[i], &scored[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if a.Commander != b.Commander {
			return a.Commander > b.Commander
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Name < b.Name
	})
}

// explain derives the explanation entries from the score components.
func (s *Scorer) explain(cs *CandidateScore, c *candidate, commanderFallback bool) ([]Reason, []string) {
	var reasons []Reason
	var supporting []string

	if len(c.simSources) > 0 {
		sort.Slice(c.simSources, func(i, j int) bool {
			if c.simSources[i].score != c.simSources[j].score {
				return c.simSources[i].score > c.simSources[j].score
			}
			return c.simSources[i].oracleID < c.simSources[j].oracleID
		})
		top := c.simSources
		if len(top) > 3 {
			top = top[:3]
		}
		names := make([]string, 0, len(top))
		for _, src := range top {
			supporting = append(supporting, src.oracleID)
			names = append(names, s.cardName(src.oracleID))
		}
		reasons = append(reasons, Reason{
			Kind:   ReasonSimilarity,
			Detail: "frequently seen with " + joinNames(names, 2),
			Weight: cs.Similarity * s.cfg.SimilarityWeight,
		})
	}

	if len(c.cmdSources) > 0 {
		names := make([]string, 0, len(c.cmdSources))
		for _, id := range dedupe(c.cmdSources) {
			names = append(names, s.cardName(id))
		}
		reasons = append(reasons, Reason{
			Kind:   ReasonCommander,
			Detail: "commander synergy: " + joinNames(names, 2),
			Weight: cs.Commander * s.cfg.CommanderWeight,
		})
	} else if commanderFallback {
		reasons = append(reasons, Reason{
			Kind:   ReasonFallback,
			Detail: "commander prior unavailable; ranked by co-occurrence and popularity",
		})
	}

	if cs.Frequency > 0 {
		reasons = append(reasons, Reason{
			Kind:   ReasonFrequency,
			Detail: "popular across observed decks",
			Weight: cs.Frequency * s.cfg.FrequencyWeight,
		})
	}

	if cs.Shape > 0 {
		detail := "mana curve is already crowded at this cost"
		if len(cs.Roles) > 0 {
			detail = "deck is already well covered for " + joinNames(cs.Roles, 3)
		}
		reasons = append(reasons, Reason{
			Kind:   ReasonShape,
			Detail: detail,
			Weight: -cs.Shape * s.cfg.ShapeWeight,
		})
	}

	if len(reasons) == 0 {
		reasons = append(reasons, Reason{Kind: ReasonFallback, Detail: "promising upgrade candidate"})
	}
	return reasons, supporting
}

func (s *Scorer) cardName(oracleID string) string {
	if card, ok := s.cards[oracleID]; ok && card.Name != "" {
		return card.Name
	}
	return oracleID
}

// joinNames joins up to n names with commas.
func joinNames(names []string, n int) string {
	if len(names) > n {
		names = names[:n]
	}
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
