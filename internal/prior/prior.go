// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package prior blends commander-conditioned card frequencies into a single
// prior weight map for a seed's commanders.
package prior

import (
	"sort"

	"github.com/TrevanC/MTGrec/internal/dataset"
)

// Config holds the commander-prior parameters.
type Config struct {
	// MaxCommanders caps how many seed commanders are blended.
	MaxCommanders int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{MaxCommanders: 2}
}

// Source attributes a share of a blended weight to one commander.
type Source struct {
	CommanderID string
	Share       float64
}

// Blend is the result of blending one or two commanders' priors.
type Blend struct {
	// Weights maps oracle id to the blended prior weight.
	Weights map[string]float64

	// Sources maps oracle id to the commanders contributing its weight,
	// largest share first.
	Sources map[string][]Source

	// Unknown lists seed commanders with no profile (zero sample size).
	// They contribute nothing; the caller records them as explanation
	// metadata rather than failing.
	Unknown []string

	// TotalSampleSize is the summed sample size of the known commanders.
	TotalSampleSize int
}

// Store looks up commander profiles and blends them.
type Store struct {
	profiles map[string]dataset.CommanderProfile
	cfg      Config
}

// NewStore creates a Store over the dataset's commander profiles.
func NewStore(profiles map[string]dataset.CommanderProfile, cfg Config) *Store {
	if cfg.MaxCommanders <= 0 {
		cfg.MaxCommanders = 2
	}
	return &Store{profiles: profiles, cfg: cfg}
}

// Profile returns the profile for a commander, if one exists.
func (s *Store) Profile(commanderID string) (dataset.CommanderProfile, bool) {
	p, ok := s.profiles[commanderID]
	return p, ok
}

// Blend combines the profiles of the given commanders, each weighted by its
// sample size: weight(card) = sum_c sample(c) * freq_c(card) / sum_c sample(c).
// Commanders observed in more decks contribute proportionally more.
func (s *Store) Blend(commanders []string) Blend {
	selected := dedupe(commanders)
	if len(selected) > s.cfg.MaxCommanders {
		selected = selected[:s.cfg.MaxCommanders]
	}

	blend := Blend{
		Weights: make(map[string]float64),
		Sources: make(map[string][]Source),
	}

	contributions := make(map[string]map[string]float64)
	totalWeight := 0.0

	for _, commanderID := range selected {
		profile, ok := s.profiles[commanderID]
		if !ok || profile.SampleSize <= 0 || len(profile.CardFrequency) == 0 {
			blend.Unknown = append(blend.Unknown, commanderID)
			continue
		}

		weight := float64(profile.SampleSize)
		totalWeight += weight
		blend.TotalSampleSize += profile.SampleSize

		for cardID, freq := range profile.CardFrequency {
			contribution := weight * freq
			blend.Weights[cardID] += contribution
			byCommander, ok := contributions[cardID]
			if !ok {
				byCommander = make(map[string]float64, len(selected))
				contributions[cardID] = byCommander
			}
			byCommander[commanderID] += contribution
		}
	}

	if totalWeight == 0 {
		blend.Weights = map[string]float64{}
		return blend
	}

	for cardID := range blend.Weights {
		blend.Weights[cardID] /= totalWeight
	}

	for cardID, byCommander := range contributions {
		total := 0.0
		for _, amount := range byCommander {
			total += amount
		}
		if total <= 0 {
			continue
		}
		sources := make([]Source, 0, len(byCommander))
		for commanderID, amount := range byCommander {
			sources = append(sources, Source{CommanderID: commanderID, Share: amount / total})
		}
		sort.Slice(sources, func(i, j int) bool {
			if sources[i].Share != sources[j].Share {
				return sources[i].Share > sources[j].Share
			}
			return sources[i].CommanderID < sources[j].CommanderID
		})
		blend.Sources[cardID] = sources
	}

	return blend
}

// dedupe preserves first-seen order.
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
