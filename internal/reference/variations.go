package reference

import (
	"sort"
	"strings"
)

// suffixAbbrevs maps institutional words to their common abbreviations.
// Variations are generated in both directions.
var suffixAbbrevs = map[string]string{
	"INSTITUTE":  "INST",
	"COLLEGE":    "COLL",
	"UNIVERSITY": "UNIV",
	"GOVERNMENT": "GOVT",
	"HOSPITAL":   "HOSP",
	"DEPARTMENT": "DEPT",
	"SCIENCES":   "SCI",
	"NATIONAL":   "NATL",
}

// cityVariants holds regional renames and chronic misspellings, applied
// bidirectionally.
var cityVariants = [][2]string{
	{"BANGALORE", "BENGALURU"},
	{"BOMBAY", "MUMBAI"},
	{"CALCUTTA", "KOLKATA"},
	{"MADRAS", "CHENNAI"},
	{"PONDICHERRY", "PUDUCHERRY"},
	{"TRIVANDRUM", "THIRUVANANTHAPURAM"},
	{"BENARES", "VARANASI"},
	{"POONA", "PUNE"},
}

// Variations generates the lookup variation set for a canonical name:
// initials joined/spaced for leading single-letter tokens, abbreviation
// swaps for institutional words, doctor-prefix variants, and regional
// city renames. The canonical normalized form itself is always included.
func Variations(name string) []string {
	base := NormalizeKey(name)
	if base == "" {
		return nil
	}

	seen := map[string]bool{base: true}
	add := func(v string) {
		if v = strings.TrimSpace(v); v != "" {
			seen[v] = true
		}
	}

	for _, v := range initialsVariants(base) {
		add(v)
	}

	// Apply word-level swaps to every variation discovered so far, one
	// pass each, so "GOVT MEDICAL COLL" style combinations emerge.
	for i := 0; i < 2; i++ {
		current := make([]string, 0, len(seen))
		for v := range seen {
			current = append(current, v)
		}
		for _, v := range current {
			for full, abbr := range suffixAbbrevs {
				add(swapWord(v, full, abbr))
				add(swapWord(v, abbr, full))
			}
			for _, pair := range cityVariants {
				add(swapWord(v, pair[0], pair[1]))
				add(swapWord(v, pair[1], pair[0]))
			}
			add(swapWord(v, "DR", "DOCTOR"))
			add(swapWord(v, "DOCTOR", "DR"))
		}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// initialsVariants handles leading single-letter tokens: for
// "B J MEDICAL COLLEGE" it produces the concatenated form
// "BJ MEDICAL COLLEGE"; for "BJ MEDICAL COLLEGE" the spaced form.
func initialsVariants(normalized string) []string {
	words := strings.Fields(normalized)
	if len(words) < 2 {
		return nil
	}

	var out []string

	// Leading run of single letters -> concatenated.
	run := 0
	for run < len(words) && len(words[run]) == 1 {
		run++
	}
	if run >= 2 {
		joined := strings.Join(words[:run], "")
		out = append(out, joined+" "+strings.Join(words[run:], " "))
	}

	// Short leading all-letter token -> spaced initials.
	first := words[0]
	if len(first) >= 2 && len(first) <= 3 && isAlpha(first) && len(words) > 1 {
		spaced := strings.Join(strings.Split(first, ""), " ")
		out = append(out, spaced+" "+strings.Join(words[1:], " "))
	}

	return out
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}

// swapWord replaces whole-word occurrences of from with to.
func swapWord(s, from, to string) string {
	words := strings.Fields(s)
	changed := false
	for i, w := range words {
		if w == from {
			words[i] = to
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(words, " ")
}
