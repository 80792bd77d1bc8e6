// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DecklistEntry is one parsed line of a plain-text deck list.
type DecklistEntry struct {
	Name     string
	Quantity int
}

// quantityLine matches "1 Sol Ring" and "1x Sol Ring".
var quantityLine = regexp.MustCompile(`^(\d+)[xX]?\s+(.+)$`)

// setSuffix matches trailing set annotations like "(BRO)" or "(2XM) 123".
var setSuffix = regexp.MustCompile(`\s*\([^)]*\)(\s+\S+)?$`)

// ParseDecklist parses a plain-text deck list into entries. Blank lines and
// comment lines (#, //) are skipped; unparseable lines become parse_error
// issues alongside the partial result.
func ParseDecklist(text string) ([]DecklistEntry, []Issue) {
	var entries []DecklistEntry
	var issues []Issue

	for lineNum, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		quantity := 1
		name := line
		if m := quantityLine.FindStringSubmatch(line); m != nil {
			q, err := strconv.Atoi(m[1])
			if err != nil || q <= 0 {
				issues = append(issues, Issue{
					Kind:   IssueParseError,
					Detail: fmt.Sprintf("line %d: invalid quantity in %q", lineNum+1, line),
				})
				continue
			}
			quantity = q
			name = m[2]
		}

		name = strings.TrimSpace(setSuffix.ReplaceAllString(name, ""))
		if name == "" {
			issues = append(issues, Issue{
				Kind:   IssueParseError,
				Detail: fmt.Sprintf("line %d: could not parse %q", lineNum+1, line),
			})
			continue
		}

		entries = append(entries, DecklistEntry{Name: name, Quantity: quantity})
	}

	return entries, issues
}
