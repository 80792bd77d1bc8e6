// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package engine

import (
	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/deck"
	"github.com/TrevanC/MTGrec/internal/eval"
	"github.com/TrevanC/MTGrec/internal/scoring"
)

// RecommendRequest asks for ranked suggestions for a partial deck.
type RecommendRequest struct {
	// Seed lists the cards already in the deck. Entries may be oracle ids,
	// printing uids, or card names; duplicates are counted.
	Seed []string `json:"seed"`

	// Commanders names the deck's commanders explicitly. When empty, the
	// legendary creatures among the seed are used.
	Commanders []string `json:"commanders,omitempty"`

	// AllowUnresolved reports unresolvable entries as data instead of
	// failing the request.
	AllowUnresolved bool `json:"allow_unresolved,omitempty"`

	// TopN overrides the configured suggestion count. 0 uses the default.
	TopN int `json:"top_n,omitempty"`
}

// ResolvedCard echoes how an input identifier was resolved.
type ResolvedCard struct {
	Input    string `json:"input"`
	OracleID string `json:"oracle_id"`
	Name     string `json:"name"`
}

// UnresolvedCard is an input identifier with no match, plus close names.
type UnresolvedCard struct {
	Input       string   `json:"input"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// RecommendResponse is the ranked suggestion list for a seed.
type RecommendResponse struct {
	RequestID   string                   `json:"request_id"`
	Commanders  []ResolvedCard           `json:"commanders,omitempty"`
	Suggestions []scoring.CandidateScore `json:"suggestions"`
	Unresolved  []UnresolvedCard         `json:"unresolved,omitempty"`
	Issues      []dataset.Issue          `json:"issues,omitempty"`
}

// CompleteResponse is a filled deck plus the picks that got it there.
type CompleteResponse struct {
	RequestID  string                   `json:"request_id"`
	Commanders []ResolvedCard           `json:"commanders,omitempty"`
	Added      []scoring.CandidateScore `json:"added"`
	CardCounts map[string]int           `json:"card_counts"`
	Unresolved []UnresolvedCard         `json:"unresolved,omitempty"`
	Issues     []dataset.Issue          `json:"issues,omitempty"`
}

// SwapsResponse lists cut-and-replace suggestions for a finished deck.
type SwapsResponse struct {
	RequestID  string           `json:"request_id"`
	Commanders []ResolvedCard   `json:"commanders,omitempty"`
	Swaps      []deck.Swap      `json:"swaps"`
	Unresolved []UnresolvedCard `json:"unresolved,omitempty"`
	Issues     []dataset.Issue  `json:"issues,omitempty"`
}

// ValidateResponse reports how a raw decklist parses and resolves.
type ValidateResponse struct {
	RequestID  string           `json:"request_id"`
	Entries    []ResolvedEntry  `json:"entries"`
	Unresolved []UnresolvedCard `json:"unresolved,omitempty"`
	Issues     []dataset.Issue  `json:"issues,omitempty"`
}

// ResolvedEntry is one resolved decklist line.
type ResolvedEntry struct {
	OracleID string `json:"oracle_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// EvalResponse wraps the holdout metrics.
type EvalResponse struct {
	RequestID string       `json:"request_id"`
	Result    *eval.Result `json:"result"`
}
