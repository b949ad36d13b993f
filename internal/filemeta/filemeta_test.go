package filemeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_TypedPattern(t *testing.T) {
	meta := Extract("KEA_2024_DENTAL_R1_aggregated_cleaned.csv")
	require.NotNil(t, meta)
	assert.Equal(t, "KEA DENTAL", meta.Authority)
	assert.Equal(t, 2024, meta.Year)
	assert.Equal(t, "r1", meta.Round)
}

func TestExtract_PlainPattern(t *testing.T) {
	meta := Extract("AIQ_PG_2024_R1_results.csv")
	require.NotNil(t, meta)
	assert.Equal(t, "AIQ PG", meta.Authority)
	assert.Equal(t, 2024, meta.Year)
	assert.Equal(t, "r1", meta.Round)
}

func TestExtract_RoundNormalizedLowercase(t *testing.T) {
	meta := Extract("KEA_2023_MEDICAL_R2_x.xlsx")
	require.NotNil(t, meta)
	assert.Equal(t, "r2", meta.Round)
}

func TestExtract_MultiDigitRound(t *testing.T) {
	meta := Extract("MCC_2024_R10_mopup.csv")
	require.NotNil(t, meta)
	assert.Equal(t, "r10", meta.Round)
}

func TestExtract_StripsDirectory(t *testing.T) {
	meta := Extract("/data/uploads/KEA_2024_DENTAL_R1_x.csv")
	require.NotNil(t, meta)
	assert.Equal(t, "KEA DENTAL", meta.Authority)
}

func TestExtract_NoMatch(t *testing.T) {
	assert.Nil(t, Extract("cutoffs-final.csv"))
	assert.Nil(t, Extract("KEA-2024-R1.csv"))
	assert.Nil(t, Extract(""))
}
