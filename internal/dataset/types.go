// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package dataset normalizes raw deck exports and compact dataset documents
// into the in-memory corpus the recommendation pipeline trains on.
//
// The package owns the Card, Deck and CommanderProfile entities. Everything
// downstream (matrix, similarity, priors, scoring) treats a built Dataset as
// immutable.
package dataset

import "sort"

// Color symbols of the five Magic colors.
var colorSymbols = map[string]struct{}{
	"W": {}, "U": {}, "B": {}, "R": {}, "G": {},
}

// Card is the metadata for a single card identified by its oracle id.
type Card struct {
	// OracleID is the stable key for the card's rules text, independent
	// of print or edition.
	OracleID string `json:"oracle_id"`

	// OracleUID is the join key to the external card source. May be empty.
	OracleUID string `json:"oracle_uid,omitempty"`

	// Name is the card's display name.
	Name string `json:"name"`

	// ColorIdentity is the set of color symbols on the card, sorted.
	ColorIdentity []string `json:"color_identity"`

	// Types is the ordered supertype/type/subtype sequence.
	Types []string `json:"types"`

	// ManaValue is the converted mana cost.
	ManaValue float64 `json:"mana_value"`

	// Roles are functional tags such as Land, Ramp, Draw, Removal.
	Roles []string `json:"roles,omitempty"`

	// CommanderLegal reports whether the card is legal in Commander.
	CommanderLegal bool `json:"commander_legal"`
}

// IsBasicLand reports whether the card is exempt from the singleton rule.
func (c *Card) IsBasicLand() bool {
	var land, basic bool
	for _, t := range c.Types {
		switch t {
		case "Land":
			land = true
		case "Basic":
			basic = true
		}
	}
	return land && basic
}

// IsLegendaryCreature reports whether the card can lead a deck when no
// commander is designated explicitly.
func (c *Card) IsLegendaryCreature() bool {
	var legendary, creature bool
	for _, t := range c.Types {
		switch t {
		case "Legendary":
			legendary = true
		case "Creature":
			creature = true
		}
	}
	return legendary && creature
}

// HasRole reports whether the card carries the given functional tag.
func (c *Card) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasType reports whether the card's type line contains the given type.
func (c *Card) HasType(typ string) bool {
	for _, t := range c.Types {
		if t == typ {
			return true
		}
	}
	return false
}

// Deck is a normalized deck list. Commanders are included in CardCounts.
type Deck struct {
	// DeckID identifies the deck within the corpus.
	DeckID string `json:"deck_id"`

	// Commanders holds 1-2 oracle ids in designation order.
	Commanders []string `json:"commanders"`

	// CardCounts maps oracle id to quantity. Quantity is 1 for every
	// non-basic-land card (singleton rule).
	CardCounts map[string]int `json:"card_counts"`

	// ColorIdentity is the deck's color identity, sorted. Derived from the
	// commanders, falling back to the mainboard union when no commander
	// carries a color.
	ColorIdentity []string `json:"color_identity"`

	// RoleCounts caches CardCounts joined with card roles.
	RoleCounts map[string]int `json:"role_counts"`
}

// Size returns the total card count including commanders.
func (d *Deck) Size() int {
	total := 0
	for _, count := range d.CardCounts {
		total += count
	}
	return total
}

// Contains reports whether the deck holds at least one copy of the card.
func (d *Deck) Contains(oracleID string) bool {
	return d.CardCounts[oracleID] > 0
}

// IsCommander reports whether the oracle id is one of the deck's commanders.
func (d *Deck) IsCommander(oracleID string) bool {
	for _, c := range d.Commanders {
		if c == oracleID {
			return true
		}
	}
	return false
}

// SortedCardIDs returns the deck's oracle ids in lexicographic order.
func (d *Deck) SortedCardIDs() []string {
	ids := make([]string, 0, len(d.CardCounts))
	for id := range d.CardCounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CommanderProfile aggregates observed card frequencies for one commander.
// Rebuilt in full on each preprocessing run, immutable during serving.
type CommanderProfile struct {
	// OracleID is the commander's oracle id.
	OracleID string `json:"oracle_id"`

	// ColorIdentity is copied from the commander card.
	ColorIdentity []string `json:"color_identity"`

	// CardFrequency maps oracle id to a smoothed probability. Values are
	// non-negative and sum to at most 1.
	CardFrequency map[string]float64 `json:"card_frequency"`

	// SampleSize is the number of decks observed with this commander.
	SampleSize int `json:"sample_size"`
}

// Dataset is the built corpus: decks sorted by deck id, cards keyed by
// oracle id, commander profiles keyed by commander oracle id.
type Dataset struct {
	Decks             []Deck
	Cards             map[string]Card
	CommanderProfiles map[string]CommanderProfile
	BanList           map[string]struct{}

	// SkippedRecords counts raw records dropped during the build.
	SkippedRecords int
}

// Banned reports whether the oracle id is on the ban list.
func (ds *Dataset) Banned(oracleID string) bool {
	_, ok := ds.BanList[oracleID]
	return ok
}

// IssueKind classifies a structured, recoverable problem.
type IssueKind string

// Stable issue kinds returned alongside partial results.
const (
	IssueParseError       IssueKind = "parse_error"
	IssueUnknownCard      IssueKind = "unknown_card"
	IssueUnknownCommander IssueKind = "unknown_commander"
	IssueMissingCommander IssueKind = "missing_commander"
	IssueTooManyCommander IssueKind = "too_many_commanders"
	IssueDeckSize         IssueKind = "deck_size"
	IssueStaleCache       IssueKind = "stale_cache"
	IssueExhausted        IssueKind = "exhausted"
)

// Issue is a structured problem report. Issues accompany partial results,
// they never abort a request on their own.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Detail      string    `json:"detail"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// validColorIdentity reports whether every symbol is one of the five colors.
func validColorIdentity(symbols []string) bool {
	for _, s := range symbols {
		if _, ok := colorSymbols[s]; !ok {
			return false
		}
	}
	return true
}

// ColorSubset reports whether every symbol of a appears in b.
func ColorSubset(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	for _, s := range a {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
