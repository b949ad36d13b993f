package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neetlogiq/cutoff-cli/internal/corrections"
	"github.com/neetlogiq/cutoff-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestSession(t *testing.T, st *SQLiteStore) *model.ImportSession {
	t.Helper()
	sess := &model.ImportSession{Filename: "KEA_2024_MEDICAL_R1.csv", FileType: "csv", Authority: "KEA MEDICAL"}
	require.NoError(t, st.CreateSession(context.Background(), sess))
	return sess
}

// --- Sessions ---

func TestSQLite_Session_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess := newTestSession(t, st)
	require.NotEmpty(t, sess.ID)

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "KEA_2024_MEDICAL_R1.csv", got.Filename)
	assert.Equal(t, model.SessionActive, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestSQLite_Session_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Session_CountersAndComplete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	sess := newTestSession(t, st)

	err := st.UpdateSessionCounters(ctx, sess.ID, model.SessionCounters{RawImported: 100, Processed: 240})
	require.NoError(t, err)
	require.NoError(t, st.CompleteSession(ctx, sess.ID, model.SessionCompleted))

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.RawImported)
	assert.Equal(t, 240, got.Processed)
	assert.Equal(t, model.SessionCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

// --- Raw staging ---

func TestSQLite_RawCutoffs_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	sess := newTestSession(t, st)

	records := []model.RawCutoff{
		{
			SessionID:   sess.ID,
			RowNumber:   1,
			Payload:     map[string]string{"college": "B.J. MDAL COLLEGE", "rank": "GM:1234"},
			Rank:        "GM:1234",
			CollegeText: "B.J. MDAL COLLEGE",
			CourseText:  "MD GENERAL MEDICINE",
		},
		{
			SessionID:   sess.ID,
			RowNumber:   2,
			Payload:     map[string]string{"college": "GOVT DENTAL COLLEGE"},
			CollegeText: "GOVT DENTAL COLLEGE",
			CourseText:  "MDS",
		},
	}

	inserted, err := st.InsertRawCutoffs(ctx, records)
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.NotZero(t, inserted[0].ID)
	assert.NotEqual(t, inserted[0].ID, inserted[1].ID)

	got, err := st.ListRawCutoffs(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B.J. MDAL COLLEGE", got[0].CollegeText)
	assert.Equal(t, "GM:1234", got[0].Payload["rank"])
}

// --- Processed staging ---

func insertProcessed(t *testing.T, st *SQLiteStore, sessionID string, rawID int64, category string, confidence int) int64 {
	t.Helper()
	n, err := st.InsertProcessedCutoffs(context.Background(), []model.ProcessedCutoff{{
		RawID:       rawID,
		SessionID:   sessionID,
		CollegeText: "B.J. MEDICAL COLLEGE",
		ProgramText: "GENERAL MEDICINE",
		Category:    category,
		ClosingRank: 1234,
		Confidence:  confidence,
	}})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	records, err := st.ListProcessedCutoffs(context.Background(), ProcessedFilter{SessionID: sessionID})
	require.NoError(t, err)
	for _, p := range records {
		if p.RawID == rawID && p.Category == category {
			return p.ID
		}
	}
	t.Fatalf("processed record not found for raw %d category %s", rawID, category)
	return 0
}

func seedRaw(t *testing.T, st *SQLiteStore, sessionID string) int64 {
	t.Helper()
	inserted, err := st.InsertRawCutoffs(context.Background(), []model.RawCutoff{{
		SessionID: sessionID, RowNumber: 1, Payload: map[string]string{},
	}})
	require.NoError(t, err)
	return inserted[0].ID
}

func TestSQLite_ProcessedCutoffs_UpsertOnReprocess(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	sess := newTestSession(t, st)
	rawID := seedRaw(t, st, sess.ID)

	insertProcessed(t, st, sess.ID, rawID, "GM", 50)

	// Reprocessing the same raw row must overwrite, not duplicate.
	n, err := st.InsertProcessedCutoffs(ctx, []model.ProcessedCutoff{{
		RawID: rawID, SessionID: sess.ID, CollegeText: "B.J. MEDICAL COLLEGE",
		ProgramText: "GENERAL MEDICINE", Category: "GM", ClosingRank: 9999, Confidence: 100,
	}})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	records, err := st.ListProcessedCutoffs(ctx, ProcessedFilter{SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 9999, records[0].ClosingRank)
	assert.Equal(t, 100, records[0].Confidence)
}

func TestSQLite_ProcessedCutoffs_FilterByConfidence(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	sess := newTestSession(t, st)
	rawID := seedRaw(t, st, sess.ID)

	insertProcessed(t, st, sess.ID, rawID, "GM", 100)
	insertProcessed(t, st, sess.ID, rawID, "OBC", 50)

	max := 50
	records, err := st.ListProcessedCutoffs(ctx, ProcessedFilter{SessionID: sess.ID, MaxConfidence: &max})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "OBC", records[0].Category)
}

func TestSQLite_ProcessedCutoffs_StatusLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	sess := newTestSession(t, st)
	rawID := seedRaw(t, st, sess.ID)
	id := insertProcessed(t, st, sess.ID, rawID, "GM", 50)

	require.NoError(t, st.UpdateProcessedStatus(ctx, id, model.RecordVerified, true))
	got, err := st.GetProcessedCutoff(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RecordVerified, got.Status)
	assert.True(t, got.ManualVerified)

	require.NoError(t, st.MarkMigrated(ctx, id))
	got, err = st.GetProcessedCutoff(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RecordMigrated, got.Status)
}

func TestSQLite_ManualCorrections_AppendOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	sess := newTestSession(t, st)
	rawID := seedRaw(t, st, sess.ID)
	id := insertProcessed(t, st, sess.ID, rawID, "GM", 50)

	err := st.AddManualCorrection(ctx, &model.ManualCorrection{
		ProcessedID:    id,
		Field:          "college_text",
		OriginalValue:  "B.J. MDAL COLLEGE",
		CorrectedValue: "B.J. MEDICAL COLLEGE",
		CorrectionType: "ocr_fix",
	})
	require.NoError(t, err)

	got, err := st.ListManualCorrections(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B.J. MEDICAL COLLEGE", got[0].CorrectedValue)
}

// --- Correction rules ---

func TestSQLite_Rules_CRUDAndStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rule := &model.CorrectionRule{
		Category:     model.RuleCollegeName,
		ErrorType:    model.ErrorOCR,
		Pattern:      "MDAL",
		RegexPattern: `\bMDAL\b`,
		Replacement:  "MEDICAL",
		Priority:     100,
		Active:       true,
	}
	require.NoError(t, st.CreateRule(ctx, rule))
	require.NotZero(t, rule.ID)

	count, err := st.CountRules(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, st.BumpRuleStats(ctx, map[int64]corrections.RuleStat{
		rule.ID: {Usage: 5, Success: 3},
	}))

	rules, err := st.ListRules(ctx, model.RuleCollegeName, true)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.EqualValues(t, 5, rules[0].UsageCount)
	assert.EqualValues(t, 3, rules[0].SuccessCount)

	require.NoError(t, st.SetRuleActive(ctx, rule.ID, false))
	rules, err = st.ListRules(ctx, model.RuleCollegeName, true)
	require.NoError(t, err)
	assert.Empty(t, rules)

	require.NoError(t, st.DeleteRule(ctx, rule.ID))
	assert.ErrorIs(t, st.DeleteRule(ctx, rule.ID), ErrNotFound)
}

// --- Canonical entities ---

func seedCollegeProgram(t *testing.T, st *SQLiteStore) (*model.College, *model.Program) {
	t.Helper()
	ctx := context.Background()
	college := &model.College{
		Name:           "B.J. MEDICAL COLLEGE",
		NormalizedName: "BJ MEDICAL COLLEGE",
		City:           "AHMEDABAD",
		State:          "GUJARAT",
	}
	require.NoError(t, st.CreateCollege(ctx, college))

	program := &model.Program{
		CollegeID:      college.ID,
		Name:           "GENERAL MEDICINE",
		NormalizedName: "GENERAL MEDICINE",
	}
	require.NoError(t, st.CreateProgram(ctx, program))
	return college, program
}

func TestSQLite_FindCollege(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	college, _ := seedCollegeProgram(t, st)

	got, err := st.FindCollege(ctx, "BJ MEDICAL COLLEGE", "AHMEDABAD", "GUJARAT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, college.ID, got.ID)

	// Same name in a different city is a different college.
	got, err = st.FindCollege(ctx, "BJ MEDICAL COLLEGE", "PUNE", "MAHARASHTRA")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_UpsertCutoff_CreateThenUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	college, program := seedCollegeProgram(t, st)

	cutoff := &model.Cutoff{
		CollegeID: college.ID, ProgramID: program.ID,
		Year: 2024, Round: "r1", Authority: "KEA MEDICAL", Quota: "state", Category: "GM",
		ClosingRank: 1234,
	}
	created, err := st.UpsertCutoff(ctx, cutoff)
	require.NoError(t, err)
	assert.True(t, created)
	firstID := cutoff.ID

	// Same natural key again: update in place.
	cutoff2 := *cutoff
	cutoff2.ID = 0
	cutoff2.ClosingRank = 2000
	created, err = st.UpsertCutoff(ctx, &cutoff2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, cutoff2.ID)

	got, err := st.GetCutoff(ctx, cutoff.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2000, got.ClosingRank)

	cutoffs, err := st.ListCutoffs(ctx, CutoffFilter{Authority: "KEA MEDICAL", Year: 2024})
	require.NoError(t, err)
	assert.Len(t, cutoffs, 1)
}

func TestSQLite_AppendAudit(t *testing.T) {
	st := newTestSQLiteStore(t)

	entry := &model.AuditEntry{
		Entity: "cutoff", EntityID: 1, Action: "create",
		After: []byte(`{"closing_rank":1234}`),
	}
	require.NoError(t, st.AppendAudit(context.Background(), entry))
	assert.NotZero(t, entry.ID)
}

// --- Reset ---

func TestSQLite_ResetStaging_KeepsCanonical(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	sess := newTestSession(t, st)
	rawID := seedRaw(t, st, sess.ID)
	insertProcessed(t, st, sess.ID, rawID, "GM", 50)
	seedCollegeProgram(t, st)

	require.NoError(t, st.ResetStaging(ctx))

	_, err := st.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	records, err := st.ListProcessedCutoffs(ctx, ProcessedFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	colleges, err := st.ListColleges(ctx)
	require.NoError(t, err)
	assert.Len(t, colleges, 1)
}
