// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package dataset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/TrevanC/MTGrec/internal/logging"
)

// ErrBuildFailed is returned when the skipped-record rate exceeds the
// configured threshold and the whole build must be treated as failed.
var ErrBuildFailed = errors.New("dataset build failed: too many malformed records")

// BuilderConfig holds dataset-builder parameters.
type BuilderConfig struct {
	// SmoothingAlpha is the additive smoothing constant for commander
	// prior frequencies.
	SmoothingAlpha float64

	// MaxFailureRate is the fraction of raw records that may be skipped
	// before the build fails as a whole.
	MaxFailureRate float64
}

// DefaultBuilderConfig returns the production defaults.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		SmoothingAlpha: 0.01,
		MaxFailureRate: 0.25,
	}
}

// RawCard is the card metadata block of a raw deck export entry.
type RawCard struct {
	OracleID      string            `json:"oracle_id" validate:"required"`
	OracleUID     string            `json:"oracle_uid"`
	Name          string            `json:"name" validate:"required"`
	ColorIdentity []string          `json:"color_identity"`
	SuperTypes    []string          `json:"super_types"`
	Types         []string          `json:"types"`
	SubTypes      []string          `json:"sub_types"`
	ManaValue     float64           `json:"mana_value" validate:"gte=0"`
	Legalities    map[string]string `json:"legalities"`
}

// RawDeckEntry is one card entry in a raw deck export. Categories carry the
// commander/maybeboard designation plus functional role tags.
type RawDeckEntry struct {
	Quantity   int      `json:"quantity" validate:"gte=0"`
	Categories []string `json:"categories"`
	Card       RawCard  `json:"card" validate:"required"`
}

// RawDeck is a single raw deck export.
type RawDeck struct {
	DeckID string         `json:"deck_id" validate:"required"`
	Cards  []RawDeckEntry `json:"cards" validate:"required,min=1,dive"`
}

// Builder converts raw deck exports into a normalized Dataset.
type Builder struct {
	cfg      BuilderConfig
	validate *validator.Validate
}

// NewBuilder creates a Builder with the given configuration.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Build normalizes raw deck exports into a Dataset. Malformed records are
// skipped and counted, never fatal on their own; the build fails only when
// the skip rate exceeds BuilderConfig.MaxFailureRate.
func (b *Builder) Build(raws []RawDeck) (*Dataset, error) {
	log := logging.With("dataset")

	decks := make([]Deck, 0, len(raws))
	cards := make(map[string]Card)
	skipped := 0

	for i := range raws {
		deck, deckCards, err := b.parseRawDeck(&raws[i])
		if err != nil {
			skipped++
			log.Warn().
				Str("deck_id", raws[i].DeckID).
				Err(err).
				Msg("skipping malformed deck record")
			continue
		}
		for id, card := range deckCards {
			if _, ok := cards[id]; !ok {
				cards[id] = card
			}
		}
		decks = append(decks, *deck)
	}

	if len(raws) > 0 {
		rate := float64(skipped) / float64(len(raws))
		if rate > b.cfg.MaxFailureRate {
			return nil, fmt.Errorf("%w: %d of %d records skipped (%.1f%%)",
				ErrBuildFailed, skipped, len(raws), rate*100)
		}
	}

	sort.Slice(decks, func(i, j int) bool { return decks[i].DeckID < decks[j].DeckID })

	ds := &Dataset{
		Decks:             decks,
		Cards:             cards,
		CommanderProfiles: BuildCommanderProfiles(decks, cards, b.cfg.SmoothingAlpha),
		BanList:           make(map[string]struct{}),
		SkippedRecords:    skipped,
	}

	log.Info().
		Int("decks", len(decks)).
		Int("cards", len(cards)).
		Int("commanders", len(ds.CommanderProfiles)).
		Int("skipped", skipped).
		Msg("dataset built")

	return ds, nil
}

// parseRawDeck converts one raw export into a Deck plus its card metadata.
func (b *Builder) parseRawDeck(raw *RawDeck) (*Deck, map[string]Card, error) {
	if err := b.validate.Struct(raw); err != nil {
		return nil, nil, fmt.Errorf("invalid record: %w", err)
	}

	cardCounts := make(map[string]int)
	roleCounts := make(map[string]int)
	metadata := make(map[string]Card)
	var commanders []string

	for i := range raw.Cards {
		entry := &raw.Cards[i]
		if entry.Quantity <= 0 {
			continue
		}
		oracleID := entry.Card.OracleID

		var isCommander, isMaybeboard bool
		for _, cat := range entry.Categories {
			switch cat {
			case "Commander":
				isCommander = true
			case "Maybeboard":
				isMaybeboard = true
			}
		}

		if _, ok := metadata[oracleID]; !ok {
			card, err := normalizeCard(&entry.Card, entry.Categories)
			if err != nil {
				return nil, nil, err
			}
			metadata[oracleID] = card
		}

		if isCommander && !isMaybeboard && !containsString(commanders, oracleID) {
			commanders = append(commanders, oracleID)
		}

		if isMaybeboard {
			continue
		}

		cardCounts[oracleID] += entry.Quantity
		for _, cat := range entry.Categories {
			if cat == "Commander" || cat == "Maybeboard" {
				continue
			}
			roleCounts[cat] += entry.Quantity
		}
	}

	if len(cardCounts) == 0 {
		return nil, nil, errors.New("empty card list")
	}

	if len(commanders) == 0 {
		commanders = fallbackCommander(cardCounts, metadata)
	}
	if len(commanders) == 0 {
		return nil, nil, errors.New("missing commander and no legendary creature fallback")
	}

	return &Deck{
		DeckID:        raw.DeckID,
		Commanders:    commanders,
		CardCounts:    cardCounts,
		ColorIdentity: deriveColorIdentity(commanders, metadata, cardCounts),
		RoleCounts:    roleCounts,
	}, metadata, nil
}

// normalizeCard flattens a raw card block into a Card. Role tags come from
// the entry categories excluding the board designations.
func normalizeCard(raw *RawCard, categories []string) (Card, error) {
	if !validColorIdentity(raw.ColorIdentity) {
		return Card{}, fmt.Errorf("card %s has invalid color identity %v", raw.OracleID, raw.ColorIdentity)
	}

	types := make([]string, 0, len(raw.SuperTypes)+len(raw.Types)+len(raw.SubTypes))
	for _, group := range [][]string{raw.SuperTypes, raw.Types, raw.SubTypes} {
		for _, t := range group {
			if t != "" {
				types = append(types, t)
			}
		}
	}

	roleSet := make(map[string]struct{})
	for _, cat := range categories {
		if cat == "Commander" || cat == "Maybeboard" || cat == "" {
			continue
		}
		roleSet[cat] = struct{}{}
	}
	roles := make([]string, 0, len(roleSet))
	for role := range roleSet {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	colors := append([]string(nil), raw.ColorIdentity...)
	sort.Strings(colors)

	return Card{
		OracleID:       raw.OracleID,
		OracleUID:      raw.OracleUID,
		Name:           raw.Name,
		ColorIdentity:  colors,
		Types:          types,
		ManaValue:      raw.ManaValue,
		Roles:          roles,
		CommanderLegal: raw.Legalities["commander"] == "legal",
	}, nil
}

// fallbackCommander picks the first legendary creature in the mainboard,
// in lexicographic oracle id order for determinism.
func fallbackCommander(cardCounts map[string]int, metadata map[string]Card) []string {
	ids := make([]string, 0, len(cardCounts))
	for id := range cardCounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		card, ok := metadata[id]
		if ok && card.IsLegendaryCreature() {
			return []string{id}
		}
	}
	return nil
}

// deriveColorIdentity unions the commanders' color identities, falling back
// to the mainboard union when the commanders carry no colors.
func deriveColorIdentity(commanders []string, metadata map[string]Card, cardCounts map[string]int) []string {
	set := make(map[string]struct{})
	for _, id := range commanders {
		if card, ok := metadata[id]; ok {
			for _, c := range card.ColorIdentity {
				set[c] = struct{}{}
			}
		}
	}

	if len(set) == 0 {
		for id := range cardCounts {
			if card, ok := metadata[id]; ok {
				for _, c := range card.ColorIdentity {
					set[c] = struct{}{}
				}
			}
		}
	}

	colors := make([]string, 0, len(set))
	for c := range set {
		colors = append(colors, c)
	}
	sort.Strings(colors)
	return colors
}

// BuildCommanderProfiles aggregates per-commander card frequencies with
// additive smoothing: (count + alpha) / (total + alpha * |vocabulary|).
// The vocabulary is the set of distinct cards across the whole corpus, so
// observed frequencies always sum to strictly less than 1 when alpha > 0.
func BuildCommanderProfiles(decks []Deck, cards map[string]Card, alpha float64) map[string]CommanderProfile {
	counts := make(map[string]map[string]int)
	samples := make(map[string]int)

	for i := range decks {
		deck := &decks[i]
		for _, commander := range deck.Commanders {
			samples[commander]++
			counter, ok := counts[commander]
			if !ok {
				counter = make(map[string]int)
				counts[commander] = counter
			}
			for id, count := range deck.CardCounts {
				counter[id] += count
			}
		}
	}

	vocabulary := float64(len(cards))
	profiles := make(map[string]CommanderProfile, len(counts))
	for commander, counter := range counts {
		sampleSize := samples[commander]
		if sampleSize == 0 {
			continue
		}

		total := 0
		for _, count := range counter {
			total += count
		}

		frequencies := make(map[string]float64, len(counter))
		denominator := float64(total) + alpha*vocabulary
		if denominator > 0 {
			for id, count := range counter {
				frequencies[id] = (float64(count) + alpha) / denominator
			}
		}

		var colors []string
		if card, ok := cards[commander]; ok {
			colors = card.ColorIdentity
		}

		profiles[commander] = CommanderProfile{
			OracleID:      commander,
			ColorIdentity: colors,
			CardFrequency: frequencies,
			SampleSize:    sampleSize,
		}
	}
	return profiles
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
