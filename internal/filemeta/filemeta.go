// Package filemeta derives authority, year, and round from cutoff export
// filenames.
package filemeta

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// FileMeta is the metadata extracted from a filename.
type FileMeta struct {
	Authority string
	Year      int
	Round     string
}

// Two fixed filename conventions, tried in order:
//
//	AUTHORITY_YEAR_TYPE_R{n}_...  -> authority "AUTHORITY TYPE"
//	AUTHORITY_YEAR_R{n}_...       -> authority with underscores as spaces
var (
	typedPattern = regexp.MustCompile(`^([A-Za-z_]+)_(\d{4})_([A-Za-z]+)_[Rr](\d+)(?:[_.]|$)`)
	plainPattern = regexp.MustCompile(`^([A-Za-z_]+)_(\d{4})_[Rr](\d+)(?:[_.]|$)`)
)

// Extract parses a filename against the fixed patterns. A nil result means
// neither pattern matched; callers fall back to their own defaults.
func Extract(filename string) *FileMeta {
	base := filepath.Base(filename)

	if m := typedPattern.FindStringSubmatch(base); m != nil {
		year, _ := strconv.Atoi(m[2])
		authority := strings.ReplaceAll(m[1], "_", " ") + " " + m[3]
		return &FileMeta{
			Authority: strings.ToUpper(authority),
			Year:      year,
			Round:     fmt.Sprintf("r%s", m[4]),
		}
	}

	if m := plainPattern.FindStringSubmatch(base); m != nil {
		year, _ := strconv.Atoi(m[2])
		return &FileMeta{
			Authority: strings.ToUpper(strings.ReplaceAll(m[1], "_", " ")),
			Year:      year,
			Round:     fmt.Sprintf("r%s", m[3]),
		}
	}

	return nil
}
