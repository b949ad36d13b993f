// Package review resolves pending staging records: approving or
// rejecting a single record with optional entity overrides, and bulk
// auto-verification of fully confident rows.
package review

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/neetlogiq/cutoff-cli/internal/model"
	"github.com/neetlogiq/cutoff-cli/internal/store"
)

// Store is the subset of the persistence interface review needs.
type Store interface {
	GetSession(ctx context.Context, id string) (*model.ImportSession, error)
	UpdateSessionCounters(ctx context.Context, id string, counters model.SessionCounters) error
	GetProcessedCutoff(ctx context.Context, id int64) (*model.ProcessedCutoff, error)
	ListProcessedCutoffs(ctx context.Context, filter store.ProcessedFilter) ([]model.ProcessedCutoff, error)
	UpdateProcessedStatus(ctx context.Context, id int64, status model.RecordStatus, manualVerified bool) error
	UpdateProcessedEntities(ctx context.Context, id int64, collegeID, programID *int64) error
	AddManualCorrection(ctx context.Context, correction *model.ManualCorrection) error
}

const autoVerifyPage = 500

// Approve marks one record verified. Non-zero collegeID/programID replace
// the resolved entity links; each override is recorded as a
// ManualCorrection before the links change.
func Approve(ctx context.Context, st Store, id, collegeID, programID int64) error {
	record, err := st.GetProcessedCutoff(ctx, id)
	if err != nil {
		return err
	}
	if record.Status == model.RecordMigrated {
		return eris.Errorf("review: record %d is already migrated", id)
	}

	newCollege := record.CollegeID
	newProgram := record.ProgramID
	if collegeID != 0 {
		newCollege = &collegeID
		if err := recordOverride(ctx, st, record, "college_id", record.CollegeID, collegeID); err != nil {
			return err
		}
	}
	if programID != 0 {
		newProgram = &programID
		if err := recordOverride(ctx, st, record, "program_id", record.ProgramID, programID); err != nil {
			return err
		}
	}
	if newCollege != record.CollegeID || newProgram != record.ProgramID {
		if err := st.UpdateProcessedEntities(ctx, id, newCollege, newProgram); err != nil {
			return err
		}
	}

	if err := st.UpdateProcessedStatus(ctx, id, model.RecordVerified, true); err != nil {
		return err
	}
	if record.Status != model.RecordVerified {
		if err := bumpVerified(ctx, st, record.SessionID, 1); err != nil {
			return err
		}
	}
	zap.L().Info("record verified", zap.Int64("processed_id", id))
	return nil
}

// Reject discards one staging record.
func Reject(ctx context.Context, st Store, id int64) error {
	record, err := st.GetProcessedCutoff(ctx, id)
	if err != nil {
		return err
	}
	if record.Status == model.RecordMigrated {
		return eris.Errorf("review: record %d is already migrated", id)
	}
	if err := st.UpdateProcessedStatus(ctx, id, model.RecordRejected, true); err != nil {
		return err
	}
	zap.L().Info("record rejected", zap.Int64("processed_id", id))
	return nil
}

// AutoVerify flips every pending record with full confidence to verified
// and updates the affected sessions' counters. An empty sessionID scans
// all sessions. Verifying a record removes it from the pending result
// set, so the page offset only advances past rows that stayed pending.
func AutoVerify(ctx context.Context, st Store, sessionID string) (int, error) {
	bySession := map[string]int{}
	verified := 0
	offset := 0
	for {
		records, err := st.ListProcessedCutoffs(ctx, store.ProcessedFilter{
			SessionID: sessionID,
			Status:    model.RecordPending,
			Limit:     autoVerifyPage,
			Offset:    offset,
		})
		if err != nil {
			return verified, err
		}

		pageVerified := 0
		for _, p := range records {
			if p.Confidence != 2*model.ConfidencePerEntity {
				continue
			}
			if err := st.UpdateProcessedStatus(ctx, p.ID, model.RecordVerified, false); err != nil {
				return verified, err
			}
			bySession[p.SessionID]++
			pageVerified++
			verified++
		}
		if len(records) < autoVerifyPage {
			break
		}
		offset += len(records) - pageVerified
	}

	for id, n := range bySession {
		if err := bumpVerified(ctx, st, id, n); err != nil {
			return verified, err
		}
	}

	zap.L().Info("auto-verify complete",
		zap.String("session_id", sessionID),
		zap.Int("verified", verified))
	return verified, nil
}

func bumpVerified(ctx context.Context, st Store, sessionID string, n int) error {
	session, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return st.UpdateSessionCounters(ctx, sessionID, model.SessionCounters{
		RawImported: session.RawImported,
		Processed:   session.Processed,
		Verified:    session.Verified + n,
		Migrated:    session.Migrated,
	})
}

func recordOverride(ctx context.Context, st Store, record *model.ProcessedCutoff, field string, old *int64, val int64) error {
	original := "-"
	if old != nil {
		original = fmt.Sprint(*old)
	}
	return st.AddManualCorrection(ctx, &model.ManualCorrection{
		ProcessedID:    record.ID,
		Field:          field,
		OriginalValue:  original,
		CorrectedValue: fmt.Sprint(val),
		CorrectionType: "entity_override",
	})
}
