package review

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neetlogiq/cutoff-cli/internal/model"
	"github.com/neetlogiq/cutoff-cli/internal/store"
)

type fakeStore struct {
	sessions    map[string]*model.ImportSession
	processed   []model.ProcessedCutoff
	corrections []model.ManualCorrection
}

func newFakeStore(records ...model.ProcessedCutoff) *fakeStore {
	fs := &fakeStore{
		sessions:  map[string]*model.ImportSession{},
		processed: records,
	}
	for _, p := range records {
		if _, ok := fs.sessions[p.SessionID]; !ok {
			fs.sessions[p.SessionID] = &model.ImportSession{ID: p.SessionID}
		}
	}
	return fs
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*model.ImportSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) UpdateSessionCounters(_ context.Context, id string, counters model.SessionCounters) error {
	s, ok := f.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.RawImported = counters.RawImported
	s.Processed = counters.Processed
	s.Verified = counters.Verified
	s.Migrated = counters.Migrated
	return nil
}

func (f *fakeStore) GetProcessedCutoff(_ context.Context, id int64) (*model.ProcessedCutoff, error) {
	for i := range f.processed {
		if f.processed[i].ID == id {
			p := f.processed[i]
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

// ListProcessedCutoffs applies offset and limit to the records matching
// the filter at call time, the way both real stores page.
func (f *fakeStore) ListProcessedCutoffs(_ context.Context, filter store.ProcessedFilter) ([]model.ProcessedCutoff, error) {
	var out []model.ProcessedCutoff
	for _, p := range f.processed {
		if filter.SessionID != "" && p.SessionID != filter.SessionID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateProcessedStatus(_ context.Context, id int64, status model.RecordStatus, manualVerified bool) error {
	for i := range f.processed {
		if f.processed[i].ID == id {
			f.processed[i].Status = status
			f.processed[i].ManualVerified = manualVerified
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) UpdateProcessedEntities(_ context.Context, id int64, collegeID, programID *int64) error {
	for i := range f.processed {
		if f.processed[i].ID == id {
			f.processed[i].CollegeID = collegeID
			f.processed[i].ProgramID = programID
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) AddManualCorrection(_ context.Context, correction *model.ManualCorrection) error {
	f.corrections = append(f.corrections, *correction)
	return nil
}

func pendingRecord(id int64, confidence int) model.ProcessedCutoff {
	return model.ProcessedCutoff{
		ID:         id,
		SessionID:  "sess-1",
		Year:       2024,
		Category:   "GM",
		Confidence: confidence,
		Status:     model.RecordPending,
	}
}

func TestApprove_SetsStatusAndCounter(t *testing.T) {
	fs := newFakeStore(pendingRecord(1, model.ConfidencePerEntity))

	require.NoError(t, Approve(context.Background(), fs, 1, 0, 0))

	assert.Equal(t, model.RecordVerified, fs.processed[0].Status)
	assert.True(t, fs.processed[0].ManualVerified)
	assert.Empty(t, fs.corrections)
	assert.Equal(t, 1, fs.sessions["sess-1"].Verified)
}

func TestApprove_RecordsEntityOverrides(t *testing.T) {
	collegeID := int64(3)
	rec := pendingRecord(1, model.ConfidencePerEntity)
	rec.CollegeID = &collegeID
	fs := newFakeStore(rec)

	require.NoError(t, Approve(context.Background(), fs, 1, 7, 9))

	require.NotNil(t, fs.processed[0].CollegeID)
	assert.EqualValues(t, 7, *fs.processed[0].CollegeID)
	require.NotNil(t, fs.processed[0].ProgramID)
	assert.EqualValues(t, 9, *fs.processed[0].ProgramID)

	require.Len(t, fs.corrections, 2)
	assert.Equal(t, "college_id", fs.corrections[0].Field)
	assert.Equal(t, "3", fs.corrections[0].OriginalValue)
	assert.Equal(t, "7", fs.corrections[0].CorrectedValue)
	assert.Equal(t, "program_id", fs.corrections[1].Field)
	assert.Equal(t, "-", fs.corrections[1].OriginalValue)
	assert.Equal(t, "entity_override", fs.corrections[1].CorrectionType)
}

func TestApprove_AlreadyVerifiedDoesNotRecount(t *testing.T) {
	rec := pendingRecord(1, 2*model.ConfidencePerEntity)
	rec.Status = model.RecordVerified
	fs := newFakeStore(rec)
	fs.sessions["sess-1"].Verified = 1

	require.NoError(t, Approve(context.Background(), fs, 1, 0, 0))
	assert.Equal(t, 1, fs.sessions["sess-1"].Verified)
}

func TestApprove_MigratedIsRefused(t *testing.T) {
	rec := pendingRecord(1, 2*model.ConfidencePerEntity)
	rec.Status = model.RecordMigrated
	fs := newFakeStore(rec)

	err := Approve(context.Background(), fs, 1, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already migrated")
}

func TestReject(t *testing.T) {
	fs := newFakeStore(pendingRecord(1, 0))

	require.NoError(t, Reject(context.Background(), fs, 1))
	assert.Equal(t, model.RecordRejected, fs.processed[0].Status)
	assert.Zero(t, fs.sessions["sess-1"].Verified)
}

func TestAutoVerify_OnlyFullConfidence(t *testing.T) {
	fs := newFakeStore(
		pendingRecord(1, 2*model.ConfidencePerEntity),
		pendingRecord(2, model.ConfidencePerEntity),
		pendingRecord(3, 0),
	)

	n, err := AutoVerify(context.Background(), fs, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, model.RecordVerified, fs.processed[0].Status)
	assert.False(t, fs.processed[0].ManualVerified)
	assert.Equal(t, model.RecordPending, fs.processed[1].Status)
	assert.Equal(t, 1, fs.sessions["sess-1"].Verified)
}

// Verifying a row removes it from the pending result set mid-scan, so a
// run spanning multiple pages must not skip rows that shifted left.
func TestAutoVerify_PagesUnderMutation(t *testing.T) {
	var records []model.ProcessedCutoff
	confident := 0
	for i := 1; i <= 3*autoVerifyPage; i++ {
		conf := model.ConfidencePerEntity
		if i%2 == 0 {
			conf = 2 * model.ConfidencePerEntity
			confident++
		}
		records = append(records, pendingRecord(int64(i), conf))
	}
	fs := newFakeStore(records...)

	n, err := AutoVerify(context.Background(), fs, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, confident, n)
	for _, p := range fs.processed {
		if p.Confidence == 2*model.ConfidencePerEntity {
			assert.Equal(t, model.RecordVerified, p.Status, fmt.Sprintf("record %d left pending", p.ID))
		} else {
			assert.Equal(t, model.RecordPending, p.Status)
		}
	}
	assert.Equal(t, confident, fs.sessions["sess-1"].Verified)
}

func TestAutoVerify_CountsPerSession(t *testing.T) {
	a := pendingRecord(1, 2*model.ConfidencePerEntity)
	b := pendingRecord(2, 2*model.ConfidencePerEntity)
	b.SessionID = "sess-2"
	fs := newFakeStore(a, b)

	n, err := AutoVerify(context.Background(), fs, "")
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, fs.sessions["sess-1"].Verified)
	assert.Equal(t, 1, fs.sessions["sess-2"].Verified)
}
