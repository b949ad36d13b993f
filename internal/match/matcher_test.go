package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neetlogiq/cutoff-cli/internal/reference"
)

func testSnapshot() *reference.Snapshot {
	colleges := []reference.Entity{
		{ID: 1, Name: "B.J. MEDICAL COLLEGE, AHMEDABAD", Type: "MEDICAL", City: "AHMEDABAD", State: "GUJARAT"},
		{ID: 2, Name: "GOVERNMENT DENTAL COLLEGE, BANGALORE", Type: "DENTAL", City: "BANGALORE", State: "KARNATAKA"},
		{ID: 3, Name: "KASTURBA MEDICAL COLLEGE, MANGALORE", Type: "MEDICAL", City: "MANGALORE", State: "KARNATAKA"},
	}
	programs := []reference.Entity{
		{ID: 10, Name: "GENERAL MEDICINE"},
		{ID: 11, Name: "RADIODIAGNOSIS"},
		{ID: 12, Name: "ORTHOPAEDICS"},
	}
	return reference.Build(colleges, programs, reference.DefaultVocab())
}

func newMatcher(t *testing.T) *Matcher {
	t.Helper()
	return New(testSnapshot(), Options{})
}

func TestMatch_Tier1Verbatim(t *testing.T) {
	m := newMatcher(t)

	res := m.Match("B.J. MEDICAL COLLEGE, AHMEDABAD", reference.TypeCollege)
	require.NotNil(t, res)
	assert.Equal(t, TierVerbatim, res.Tier)
	assert.Equal(t, int64(1), res.Entity.ID)
}

func TestMatch_Tier2Normalized(t *testing.T) {
	m := newMatcher(t)

	// Punctuation-stripped form.
	res := m.Match("BJ MEDICAL COLLEGE AHMEDABAD", reference.TypeCollege)
	require.NotNil(t, res)
	assert.Equal(t, TierNormalized, res.Tier)
	assert.Equal(t, int64(1), res.Entity.ID)

	// Variation: city rename.
	res = m.Match("GOVERNMENT DENTAL COLLEGE, BENGALURU", reference.TypeCollege)
	require.NotNil(t, res)
	assert.Equal(t, TierNormalized, res.Tier)
	assert.Equal(t, int64(2), res.Entity.ID)
}

func TestMatch_Tier3Substring(t *testing.T) {
	m := newMatcher(t)

	// Query embeds the canonical name plus trailing address noise that
	// normalization alone cannot remove.
	res := m.Match("KASTURBA MEDICAL COLLEGE MANGALORE LIGHT HOUSE HILL ROAD", reference.TypeCollege)
	require.NotNil(t, res)
	assert.Equal(t, TierSubstring, res.Tier)
	assert.Equal(t, int64(3), res.Entity.ID)
}

func TestMatch_Tier3SubtypeConstraint(t *testing.T) {
	snap := reference.Build([]reference.Entity{
		{ID: 1, Name: "GOVERNMENT COLLEGE X", Type: "MEDICAL"},
		{ID: 2, Name: "GOVERNMENT DENTAL COLLEGE X EXTENSION CAMPUS", Type: "DENTAL"},
	}, nil, reference.DefaultVocab())
	m := New(snap, Options{})

	// A DENTAL query must not substring-match a medical college.
	res := m.Match("GOVERNMENT DENTAL COLLEGE X", reference.TypeCollege)
	require.NotNil(t, res)
	assert.Equal(t, int64(2), res.Entity.ID)
}

func TestMatch_Tier4MultiKeyword(t *testing.T) {
	m := newMatcher(t)

	// Shares KASTURBA + MANGALORE with entity 3; word order scrambled so
	// exact and substring tiers miss.
	res := m.Match("MANGALORE KASTURBA INSTITUTE", reference.TypeCollege)
	require.NotNil(t, res)
	assert.Equal(t, TierMultiKeyword, res.Tier)
	assert.Equal(t, int64(3), res.Entity.ID)
}

func TestMatch_Tier5SingleKeyword(t *testing.T) {
	m := newMatcher(t)

	// Shares only MEDICINE with "GENERAL MEDICINE": too few tokens for
	// tier 4, no containment for tier 3.
	res := m.Match("ADVANCED MEDICINE PROGRAMME", reference.TypeProgram)
	require.NotNil(t, res)
	assert.Equal(t, TierSingleKeyword, res.Tier)
	assert.Equal(t, int64(10), res.Entity.ID)
}

func TestMatch_GreedyFirstTierWins(t *testing.T) {
	// Entity 1 matches at tier 2; entity 2 would be a "better" tier-3
	// match but the cascade never gets there.
	snap := reference.Build([]reference.Entity{
		{ID: 1, Name: "GRANT MEDICAL COLLEGE"},
		{ID: 2, Name: "GRANT MEDICAL COLLEGE MUMBAI"},
	}, nil, reference.DefaultVocab())
	m := New(snap, Options{})

	res := m.Match("GRANT MEDICAL COLLEGE", reference.TypeCollege)
	require.NotNil(t, res)
	assert.Equal(t, TierVerbatim, res.Tier)
	assert.Equal(t, int64(1), res.Entity.ID)
}

func TestMatch_MaxTierCapsCascade(t *testing.T) {
	m := New(testSnapshot(), Options{MaxTier: TierNormalized})

	// Would hit at tiers 3-5; capped matcher returns nothing.
	assert.Nil(t, m.Match("MANGALORE KASTURBA INSTITUTE", reference.TypeCollege))
	assert.Nil(t, m.Match("DEPT OF RADIODIAGNOSIS SERVICES", reference.TypeProgram))
	assert.Nil(t, m.Match("ADVANCED MEDICINE PROGRAMME", reference.TypeProgram))

	// Tier 2 still works.
	assert.NotNil(t, m.Match("BJ MEDICAL COLLEGE AHMEDABAD", reference.TypeCollege))
}

func TestMatch_NoMatch(t *testing.T) {
	m := newMatcher(t)
	assert.Nil(t, m.Match("COMPLETELY UNRELATED ACADEMY OF ARTS", reference.TypeCollege))
	assert.Nil(t, m.Match("", reference.TypeCollege))
	assert.Nil(t, m.Match("   ", reference.TypeProgram))
}

func TestMatch_ProgramTokensNeedLengthFour(t *testing.T) {
	// "ENT" (3 chars) is below the program token minimum; no multi-keyword
	// match can form from it.
	snap := reference.Build(nil, []reference.Entity{
		{ID: 1, Name: "ENT SURGERY"},
	}, reference.DefaultVocab())
	m := New(snap, Options{MaxTier: TierMultiKeyword})

	assert.Nil(t, m.Match("ENT CLINIC", reference.TypeProgram))
}
