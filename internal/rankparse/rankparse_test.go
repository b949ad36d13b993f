package rankparse

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Basic(t *testing.T) {
	entries, err := Parse("GM:15958, SC:25000, OBC:30000")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Category: "GM", Rank: 15958},
		{Category: "SC", Rank: 25000},
		{Category: "OBC", Rank: 30000},
	}, entries)
}

func TestParse_PreservesInputOrder(t *testing.T) {
	entries, err := Parse("SC:2, GM:1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SC", entries[0].Category)
	assert.Equal(t, "GM", entries[1].Category)
}

func TestParse_NormalizesCategories(t *testing.T) {
	entries, err := Parse("general:100, ur:200, obc-ncl:300")
	require.NoError(t, err)
	assert.Equal(t, "GM", entries[0].Category)
	assert.Equal(t, "GM", entries[1].Category)
	assert.Equal(t, "OBC", entries[2].Category)
}

func TestParse_UnknownCategoryPassesThroughUppercased(t *testing.T) {
	entries, err := Parse("xyz:42")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", entries[0].Category)
}

func TestParse_DropsInvalidSegments(t *testing.T) {
	entries, err := Parse("GM:100, SC:abc, nothing, ST:200")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Category: "GM", Rank: 100}, entries[0])
	assert.Equal(t, Entry{Category: "ST", Rank: 200}, entries[1])
}

func TestParse_SplitsOnFirstColonOnly(t *testing.T) {
	// Malformed second colon lands in the rank portion and the segment drops.
	entries, err := Parse("GM:1:2, SC:5")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SC", entries[0].Category)
}

func TestParse_NegativeAndZeroRanksDropped(t *testing.T) {
	_, err := Parse("GM:-5, SC:0")
	require.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoValidRanks))
}

func TestParse_NoValidPairs(t *testing.T) {
	_, err := Parse("garbage, more garbage")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoValidRanks))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "GM", NormalizeCategory(" gen "))
	assert.Equal(t, "EWS", NormalizeCategory("ews"))
	assert.Equal(t, "FOO", NormalizeCategory("foo"))
}
