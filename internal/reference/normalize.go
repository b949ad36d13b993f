package reference

import (
	"regexp"
	"strings"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeKey standardizes an entity name for matching by:
//  1. Trimming whitespace
//  2. Converting to uppercase
//  3. Stripping punctuation (commas, periods, quotes, dashes, ampersands)
//  4. Collapsing multiple spaces into single spaces
func NormalizeKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	name = strings.NewReplacer(
		",", " ",
		".", "",
		"'", "",
		"\"", "",
		"&", " AND ",
		"-", " ",
		"(", " ",
		")", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Tokens splits a normalized name into words longer than minLen.
func Tokens(name string, minLen int) []string {
	var out []string
	for _, tok := range strings.Fields(NormalizeKey(name)) {
		if len(tok) > minLen {
			out = append(out, tok)
		}
	}
	return out
}
