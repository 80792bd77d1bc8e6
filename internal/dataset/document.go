// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package dataset

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/TrevanC/MTGrec/internal/logging"
)

// Document is the compact dataset artifact produced by the external
// preprocessing step. It is the sole input to the training pipeline.
type Document struct {
	// SchemaVersion identifies the document layout. Zero means version 1.
	SchemaVersion int `json:"schema_version,omitempty"`

	// Cards maps oracle id to card metadata.
	Cards map[string]DocumentCard `json:"cards"`

	// Decks holds the normalized deck lists.
	Decks []DocumentDeck `json:"decks"`

	// CommanderProfiles maps commander oracle id to profile data. Optional;
	// profiles are rebuilt from the decks when absent.
	CommanderProfiles map[string]DocumentProfile `json:"commander_profiles,omitempty"`

	// BanList holds oracle ids banned in Commander. Optional.
	BanList []string `json:"ban_list,omitempty"`
}

// DocumentCard is the card shape inside a Document.
type DocumentCard struct {
	OracleUID      string   `json:"oracle_uid,omitempty"`
	Name           string   `json:"name" validate:"required"`
	ColorIdentity  []string `json:"color_identity"`
	Types          []string `json:"types"`
	ManaValue      float64  `json:"mana_value" validate:"gte=0"`
	Roles          []string `json:"roles,omitempty"`
	CommanderLegal bool     `json:"commander_legal"`
}

// DocumentDeck is the deck shape inside a Document.
type DocumentDeck struct {
	DeckID        string         `json:"deck_id" validate:"required"`
	Commanders    []string       `json:"commanders" validate:"required,min=1,max=2"`
	CardCounts    map[string]int `json:"card_counts" validate:"required,min=1"`
	ColorIdentity []string       `json:"color_identity"`
	RoleCounts    map[string]int `json:"role_counts"`
}

// DocumentProfile is the commander profile shape inside a Document.
type DocumentProfile struct {
	ColorIdentity []string           `json:"color_identity"`
	CardFrequency map[string]float64 `json:"card_frequency"`
	SampleSize    int                `json:"sample_size"`
}

// LoadDocument reads a compact dataset document from disk. Files ending in
// .gz are decompressed transparently.
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from validated configuration
	if err != nil {
		return nil, fmt.Errorf("open dataset document: %w", err)
	}
	defer func() { _ = f.Close() }()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip dataset document: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	doc := &Document{}
	if err := json.NewDecoder(reader).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode dataset document: %w", err)
	}
	return doc, nil
}

// FromDocument converts a compact dataset document into a Dataset. Malformed
// deck entries are skipped and counted; the conversion fails only when the
// skip rate exceeds BuilderConfig.MaxFailureRate. Commander profiles present
// in the document are used as-is; otherwise they are rebuilt from the decks
// with additive smoothing.
func (b *Builder) FromDocument(doc *Document) (*Dataset, error) {
	log := logging.With("dataset")

	cards := make(map[string]Card, len(doc.Cards))
	for oracleID, dc := range doc.Cards {
		colors := append([]string(nil), dc.ColorIdentity...)
		sort.Strings(colors)
		cards[oracleID] = Card{
			OracleID:       oracleID,
			OracleUID:      dc.OracleUID,
			Name:           dc.Name,
			ColorIdentity:  colors,
			Types:          dc.Types,
			ManaValue:      dc.ManaValue,
			Roles:          dc.Roles,
			CommanderLegal: dc.CommanderLegal,
		}
	}

	decks := make([]Deck, 0, len(doc.Decks))
	skipped := 0
	for i := range doc.Decks {
		entry := &doc.Decks[i]
		if err := b.validate.Struct(entry); err != nil {
			skipped++
			log.Warn().Str("deck_id", entry.DeckID).Err(err).Msg("skipping malformed deck entry")
			continue
		}

		colors := entry.ColorIdentity
		if len(colors) == 0 {
			colors = deriveColorIdentity(entry.Commanders, cards, entry.CardCounts)
		} else {
			colors = append([]string(nil), colors...)
			sort.Strings(colors)
		}

		roleCounts := entry.RoleCounts
		if roleCounts == nil {
			roleCounts = DeriveRoleCounts(entry.CardCounts, cards)
		}

		decks = append(decks, Deck{
			DeckID:        entry.DeckID,
			Commanders:    entry.Commanders,
			CardCounts:    entry.CardCounts,
			ColorIdentity: colors,
			RoleCounts:    roleCounts,
		})
	}

	if len(doc.Decks) > 0 {
		rate := float64(skipped) / float64(len(doc.Decks))
		if rate > b.cfg.MaxFailureRate {
			return nil, fmt.Errorf("%w: %d of %d entries skipped (%.1f%%)",
				ErrBuildFailed, skipped, len(doc.Decks), rate*100)
		}
	}

	sort.Slice(decks, func(i, j int) bool { return decks[i].DeckID < decks[j].DeckID })

	profiles := make(map[string]CommanderProfile, len(doc.CommanderProfiles))
	if len(doc.CommanderProfiles) > 0 {
		for commander, dp := range doc.CommanderProfiles {
			profiles[commander] = CommanderProfile{
				OracleID:      commander,
				ColorIdentity: dp.ColorIdentity,
				CardFrequency: dp.CardFrequency,
				SampleSize:    dp.SampleSize,
			}
		}
	} else {
		profiles = BuildCommanderProfiles(decks, cards, b.cfg.SmoothingAlpha)
	}

	banList := make(map[string]struct{}, len(doc.BanList))
	for _, id := range doc.BanList {
		banList[id] = struct{}{}
	}

	ds := &Dataset{
		Decks:             decks,
		Cards:             cards,
		CommanderProfiles: profiles,
		BanList:           banList,
		SkippedRecords:    skipped,
	}

	log.Info().
		Int("decks", len(decks)).
		Int("cards", len(cards)).
		Int("commanders", len(profiles)).
		Int("banned", len(banList)).
		Int("skipped", skipped).
		Msg("dataset loaded from document")

	return ds, nil
}

// Load reads and converts a compact dataset document in one step.
func (b *Builder) Load(path string) (*Dataset, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return b.FromDocument(doc)
}

// DeriveRoleCounts rebuilds the role-count cache from card counts and roles.
// Every constructed Deck must carry it; shape evaluation trusts the cache and
// never recomputes it from the card list.
func DeriveRoleCounts(cardCounts map[string]int, cards map[string]Card) map[string]int {
	roleCounts := make(map[string]int)
	for id, count := range cardCounts {
		card, ok := cards[id]
		if !ok {
			continue
		}
		for _, role := range card.Roles {
			roleCounts[role] += count
		}
	}
	return roleCounts
}
