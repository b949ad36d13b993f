// Package match resolves free-text college and program names to canonical
// reference entities using a tiered cascade.
package match

import (
	"strings"

	"github.com/neetlogiq/cutoff-cli/internal/reference"
)

// Tier identifies which cascade stage produced a match. Lower tiers are
// stricter; tier 5 is the weak single-keyword fallback.
type Tier int

const (
	TierNone          Tier = 0
	TierVerbatim      Tier = 1
	TierNormalized    Tier = 2
	TierSubstring     Tier = 3
	TierMultiKeyword  Tier = 4
	TierSingleKeyword Tier = 5
)

func (t Tier) String() string {
	switch t {
	case TierVerbatim:
		return "verbatim"
	case TierNormalized:
		return "normalized"
	case TierSubstring:
		return "substring"
	case TierMultiKeyword:
		return "multi_keyword"
	case TierSingleKeyword:
		return "single_keyword"
	default:
		return "none"
	}
}

// Minimum token lengths for keyword tiers, per entity type.
const (
	collegeTokenMin  = 2 // words longer than 2
	programTokenMin  = 3 // words longer than 3
	singleKeywordMin = 6 // single-keyword fallback needs a long token
	substringMin     = 6 // shorter side of a containment check
)

// Options tunes the cascade. MaxTier caps how deep matching may go;
// keeping it at TierSingleKeyword preserves the always-accept-weak-hits
// policy, lowering it trades recall for precision.
type Options struct {
	MaxTier Tier
}

// Result is a successful match and the tier that produced it.
type Result struct {
	Entity *reference.Entity
	Tier   Tier
}

// Matcher runs the cascade against one reference snapshot. Safe for
// concurrent use; the snapshot is immutable.
type Matcher struct {
	snap *reference.Snapshot
	opts Options
}

// New creates a matcher. A zero MaxTier means the full cascade.
func New(snap *reference.Snapshot, opts Options) *Matcher {
	if opts.MaxTier == TierNone {
		opts.MaxTier = TierSingleKeyword
	}
	return &Matcher{snap: snap, opts: opts}
}

// Match resolves a cleaned name to at most one canonical entity. The
// cascade is greedy: the first tier producing any candidate wins, with no
// cross-tier scoring. Returns nil when every permitted tier misses.
func (m *Matcher) Match(cleanedName string, entityType reference.EntityType) *Result {
	cleanedName = strings.TrimSpace(cleanedName)
	if cleanedName == "" {
		return nil
	}

	// Tier 1: exact verbatim name.
	if e := m.snap.ByVerbatim(entityType, cleanedName); e != nil {
		return &Result{Entity: e, Tier: TierVerbatim}
	}

	key := reference.NormalizeKey(cleanedName)

	// Tier 2: normalized name or known variation.
	if m.opts.MaxTier >= TierNormalized {
		if e := m.snap.ByNormalized(entityType, key); e != nil {
			return &Result{Entity: e, Tier: TierNormalized}
		}
	}

	// Tier 3: substring containment in either direction, restricted to
	// plausible subtypes.
	if m.opts.MaxTier >= TierSubstring {
		if e := m.matchSubstring(key, entityType); e != nil {
			return &Result{Entity: e, Tier: TierSubstring}
		}
	}

	// Tier 4: at least two shared keywords.
	if m.opts.MaxTier >= TierMultiKeyword {
		if e := m.matchMultiKeyword(key, entityType); e != nil {
			return &Result{Entity: e, Tier: TierMultiKeyword}
		}
	}

	// Tier 5: one long keyword, first hit, no disambiguation.
	if m.opts.MaxTier >= TierSingleKeyword {
		if e := m.matchSingleKeyword(key, entityType); e != nil {
			return &Result{Entity: e, Tier: TierSingleKeyword}
		}
	}

	return nil
}

func (m *Matcher) matchSubstring(key string, entityType reference.EntityType) *reference.Entity {
	if len(key) < substringMin {
		return nil
	}

	for i, e := range m.snap.Entities(entityType) {
		if !plausibleSubtype(key, entityType, e.Type) {
			continue
		}
		entityKey := reference.NormalizeKey(e.Name)
		if len(entityKey) < substringMin {
			continue
		}
		if strings.Contains(entityKey, key) || strings.Contains(key, entityKey) {
			return m.entityAt(entityType, i)
		}
	}
	return nil
}

func (m *Matcher) matchMultiKeyword(key string, entityType reference.EntityType) *reference.Entity {
	minLen := tokenMin(entityType)
	queryTokens := reference.Tokens(key, minLen)
	if len(queryTokens) < 2 {
		return nil
	}
	querySet := toSet(queryTokens)

	for i, e := range m.snap.Entities(entityType) {
		shared := 0
		for _, tok := range reference.Tokens(e.Name, minLen) {
			if querySet[tok] {
				shared++
				if shared >= 2 {
					return m.entityAt(entityType, i)
				}
			}
		}
	}
	return nil
}

func (m *Matcher) matchSingleKeyword(key string, entityType reference.EntityType) *reference.Entity {
	for _, tok := range reference.Tokens(key, singleKeywordMin-1) {
		for i, e := range m.snap.Entities(entityType) {
			for _, etok := range reference.Tokens(e.Name, singleKeywordMin-1) {
				if etok == tok {
					return m.entityAt(entityType, i)
				}
			}
		}
	}
	return nil
}

// plausibleSubtype keeps the substring tier from matching a medical query
// against a dental college and vice versa. Untyped entities always pass.
func plausibleSubtype(key string, entityType reference.EntityType, subtype string) bool {
	if entityType != reference.TypeCollege || subtype == "" {
		return true
	}
	if strings.Contains(key, "DENTAL") {
		return subtype == "DENTAL"
	}
	return subtype != "DENTAL"
}

func tokenMin(entityType reference.EntityType) int {
	if entityType == reference.TypeProgram {
		return programTokenMin
	}
	return collegeTokenMin
}

func (m *Matcher) entityAt(entityType reference.EntityType, i int) *reference.Entity {
	ents := m.snap.Entities(entityType)
	e := ents[i]
	return &e
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}
