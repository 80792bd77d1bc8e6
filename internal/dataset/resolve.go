// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package dataset

import (
	"sort"
	"strings"
)

// Resolver maps user-supplied card identifiers (oracle id, oracle uid, or
// card name) to cards, with fuzzy suggestions for unknown names.
type Resolver struct {
	byOracle map[string]Card
	byUID    map[string]Card
	byName   map[string]Card

	// names holds every normalized name for suggestion scans, sorted.
	names []string
}

// NewResolver builds lookup indices over the dataset's cards.
func NewResolver(cards map[string]Card) *Resolver {
	r := &Resolver{
		byOracle: make(map[string]Card, len(cards)),
		byUID:    make(map[string]Card),
		byName:   make(map[string]Card, len(cards)),
	}

	for oracleID, card := range cards {
		r.byOracle[oracleID] = card
		if card.OracleUID != "" {
			r.byUID[card.OracleUID] = card
		}
		if card.Name != "" {
			r.byName[NormalizeName(card.Name)] = card
		}
	}

	r.names = make([]string, 0, len(r.byName))
	for name := range r.byName {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	return r
}

// Resolve looks up a card by oracle id, then oracle uid, then normalized
// name.
func (r *Resolver) Resolve(identifier string) (Card, bool) {
	if card, ok := r.byOracle[identifier]; ok {
		return card, true
	}
	if card, ok := r.byUID[identifier]; ok {
		return card, true
	}
	card, ok := r.byName[NormalizeName(identifier)]
	return card, ok
}

// Suggest returns up to n known card names close to the given unknown name,
// ordered by edit distance then lexicographically. Names further than a
// third of the query length are not suggested.
func (r *Resolver) Suggest(name string, n int) []string {
	if n <= 0 {
		return nil
	}

	query := NormalizeName(name)
	if query == "" {
		return nil
	}
	maxDistance := len(query)/3 + 1

	type match struct {
		name     string
		distance int
	}
	matches := make([]match, 0, n)

	for _, candidate := range r.names {
		// Length difference is a lower bound on edit distance.
		if abs(len(candidate)-len(query)) > maxDistance {
			continue
		}
		d := editDistance(query, candidate)
		if d > maxDistance {
			continue
		}
		matches = append(matches, match{name: candidate, distance: d})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})

	if len(matches) > n {
		matches = matches[:n]
	}
	suggestions := make([]string, len(matches))
	for i, m := range matches {
		suggestions[i] = r.byName[m.name].Name
	}
	return suggestions
}

// NormalizeName lowercases a card name and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// editDistance computes the Levenshtein distance between two strings using
// two rolling rows.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
