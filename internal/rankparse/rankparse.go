// Package rankparse parses composite rank strings of the form
// "CATEGORY:RANK, CATEGORY:RANK" into discrete category/rank pairs.
package rankparse

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Entry is one parsed (category, rank) pair.
type Entry struct {
	Category string
	Rank     int
}

// ErrNoValidRanks marks a composite string that yielded zero valid pairs.
// This is a row-level failure, not a pipeline error.
var ErrNoValidRanks = eris.New("rankparse: no valid category:rank pairs")

// categoryVocab maps raw category spellings to the closed vocabulary.
// Unknown categories fall through uppercased.
var categoryVocab = map[string]string{
	"GM":      "GM",
	"GEN":     "GM",
	"GENERAL": "GM",
	"UR":      "GM",
	"OPEN":    "GM",
	"SC":      "SC",
	"ST":      "ST",
	"OBC":     "OBC",
	"OBC-NCL": "OBC",
	"BC":      "OBC",
	"EWS":     "EWS",
	"GMP":     "GMP",
	"MU":      "MU",
	"2AG":     "2AG",
	"2BG":     "2BG",
	"3AG":     "3AG",
	"3BG":     "3BG",
	"CAT1":    "CAT1",
	"NRI":     "NRI",
	"PH":      "PH",
	"PWD":     "PWD",
}

// NormalizeCategory resolves a raw category code against the closed
// vocabulary, falling back to the uppercased original.
func NormalizeCategory(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if canonical, ok := categoryVocab[key]; ok {
		return canonical
	}
	return key
}

// Parse splits a composite rank string into entries, preserving input
// order. Segments without a colon or with a non-integer rank are silently
// dropped; a string yielding zero valid pairs returns ErrNoValidRanks.
func Parse(s string) ([]Entry, error) {
	var entries []Entry

	for _, segment := range strings.Split(s, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		category, rankStr, found := strings.Cut(segment, ":")
		if !found {
			continue
		}

		rank, err := strconv.Atoi(strings.TrimSpace(rankStr))
		if err != nil || rank <= 0 {
			continue
		}

		category = NormalizeCategory(category)
		if category == "" {
			continue
		}

		entries = append(entries, Entry{Category: category, Rank: rank})
	}

	if len(entries) == 0 {
		return nil, ErrNoValidRanks
	}
	return entries, nil
}
