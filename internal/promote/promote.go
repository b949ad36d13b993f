// Package promote migrates verified staging records into the canonical
// cutoff tables, creating missing colleges and programs along the way.
package promote

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/neetlogiq/cutoff-cli/internal/model"
	"github.com/neetlogiq/cutoff-cli/internal/reference"
	"github.com/neetlogiq/cutoff-cli/internal/store"
)

// Store is the subset of the persistence interface the engine needs.
type Store interface {
	GetSession(ctx context.Context, id string) (*model.ImportSession, error)
	UpdateSessionCounters(ctx context.Context, id string, counters model.SessionCounters) error
	ListProcessedCutoffs(ctx context.Context, filter store.ProcessedFilter) ([]model.ProcessedCutoff, error)
	MarkMigrated(ctx context.Context, id int64) error
	FindCollege(ctx context.Context, normalizedName, city, state string) (*model.College, error)
	CreateCollege(ctx context.Context, college *model.College) error
	FindProgram(ctx context.Context, collegeID int64, normalizedName string) (*model.Program, error)
	CreateProgram(ctx context.Context, program *model.Program) error
	GetCutoff(ctx context.Context, key model.CutoffKey) (*model.Cutoff, error)
	UpsertCutoff(ctx context.Context, cutoff *model.Cutoff) (bool, error)
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
}

// Options tunes a promotion run.
type Options struct {
	// DryRun resolves and counts without writing anything.
	DryRun bool
	// BatchSize bounds each staging page fetch.
	BatchSize int
}

// RecordError pairs a staging record with the failure that kept it from
// migrating.
type RecordError struct {
	ProcessedID int64  `json:"processed_id"`
	Reason      string `json:"reason"`
}

// Summary reports the outcome of one promotion run.
type Summary struct {
	Eligible        int           `json:"eligible"`
	Migrated        int           `json:"migrated"`
	CutoffsCreated  int           `json:"cutoffs_created"`
	CutoffsUpdated  int           `json:"cutoffs_updated"`
	CollegesCreated int           `json:"colleges_created"`
	ProgramsCreated int           `json:"programs_created"`
	Failed          []RecordError `json:"failed,omitempty"`
}

// Engine promotes staging records into the canonical store.
type Engine struct {
	store Store
	opts  Options
	log   *zap.Logger
}

// New creates a promotion engine.
func New(st Store, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Engine{
		store: st,
		opts:  opts,
		log:   zap.L().With(zap.String("component", "promote")),
	}
}

// Promote migrates all eligible records of one session. A record is
// eligible when a human verified it, or when entity resolution was fully
// confident. Failures are recorded per record and never abort the run.
func (e *Engine) Promote(ctx context.Context, sessionID string) (*Summary, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	records, err := e.eligibleRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Eligible: len(records)}
	e.log.Info("starting promotion",
		zap.String("session_id", sessionID),
		zap.Int("eligible", len(records)),
		zap.Bool("dry_run", e.opts.DryRun))

	for i := range records {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "promote: cancelled")
		}
		if err := e.promoteRecord(ctx, &records[i], session.Filename, summary); err != nil {
			summary.Failed = append(summary.Failed, RecordError{
				ProcessedID: records[i].ID,
				Reason:      err.Error(),
			})
			e.log.Warn("record failed to migrate",
				zap.Int64("processed_id", records[i].ID),
				zap.Error(err))
		}
	}

	if !e.opts.DryRun && summary.Migrated > 0 {
		counters := model.SessionCounters{
			RawImported: session.RawImported,
			Processed:   session.Processed,
			Verified:    session.Verified,
			Migrated:    session.Migrated + summary.Migrated,
		}
		if err := e.store.UpdateSessionCounters(ctx, sessionID, counters); err != nil {
			return summary, err
		}
	}

	e.log.Info("promotion finished",
		zap.String("session_id", sessionID),
		zap.Int("migrated", summary.Migrated),
		zap.Int("failed", len(summary.Failed)))
	return summary, nil
}

// eligibleRecords pages through the session's staging records and keeps
// the verified ones plus pending records with full confidence.
func (e *Engine) eligibleRecords(ctx context.Context, sessionID string) ([]model.ProcessedCutoff, error) {
	var eligible []model.ProcessedCutoff
	offset := 0
	for {
		page, err := e.store.ListProcessedCutoffs(ctx, store.ProcessedFilter{
			SessionID: sessionID,
			Limit:     e.opts.BatchSize,
			Offset:    offset,
		})
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			switch {
			case p.Status == model.RecordVerified:
				eligible = append(eligible, p)
			case p.Status == model.RecordPending && p.Confidence == 2*model.ConfidencePerEntity:
				eligible = append(eligible, p)
			}
		}
		if len(page) < e.opts.BatchSize {
			return eligible, nil
		}
		offset += len(page)
	}
}

func (e *Engine) promoteRecord(ctx context.Context, p *model.ProcessedCutoff, sourceFile string, summary *Summary) error {
	if p.CollegeText == "" || p.ProgramText == "" {
		return eris.New("promote: record missing college or program text")
	}

	college, err := e.resolveCollege(ctx, p, summary)
	if err != nil {
		return err
	}
	program, err := e.resolveProgram(ctx, college, p, summary)
	if err != nil {
		return err
	}

	cutoff := &model.Cutoff{
		CollegeID:      college.ID,
		ProgramID:      program.ID,
		Year:           p.Year,
		Round:          p.Round,
		Authority:      p.Authority,
		Quota:          p.Quota,
		Category:       p.Category,
		OpeningRank:    p.OpeningRank,
		ClosingRank:    p.ClosingRank,
		SeatsAvailable: p.SeatsAvailable,
		SeatsFilled:    p.SeatsFilled,
		SourceFile:     sourceFile,
	}

	before, err := e.store.GetCutoff(ctx, cutoff.Key())
	if err != nil {
		return err
	}

	if e.opts.DryRun {
		if before == nil {
			summary.CutoffsCreated++
		} else {
			summary.CutoffsUpdated++
		}
		summary.Migrated++
		return nil
	}

	created, err := e.store.UpsertCutoff(ctx, cutoff)
	if err != nil {
		return err
	}
	if created {
		summary.CutoffsCreated++
	} else {
		summary.CutoffsUpdated++
	}

	if err := e.auditCutoff(ctx, before, cutoff, created); err != nil {
		return err
	}
	if err := e.store.MarkMigrated(ctx, p.ID); err != nil {
		return err
	}
	summary.Migrated++
	return nil
}

// resolveCollege finds the canonical college by normalized name and
// location, creating it when absent. The staging record's snapshot entity
// id is advisory only; the normalized text is authoritative here.
func (e *Engine) resolveCollege(ctx context.Context, p *model.ProcessedCutoff, summary *Summary) (*model.College, error) {
	normalized := reference.NormalizeKey(p.CollegeText)
	college, err := e.store.FindCollege(ctx, normalized, p.City, p.State)
	if err != nil {
		return nil, err
	}
	if college != nil {
		return college, nil
	}

	college = &model.College{
		Name:           p.CollegeText,
		NormalizedName: normalized,
		City:           p.City,
		State:          p.State,
	}
	summary.CollegesCreated++
	if e.opts.DryRun {
		return college, nil
	}
	if err := e.store.CreateCollege(ctx, college); err != nil {
		return nil, err
	}
	if err := e.auditCreate(ctx, "college", college.ID, college); err != nil {
		return nil, err
	}
	e.log.Info("created canonical college",
		zap.Int64("college_id", college.ID),
		zap.String("name", college.Name))
	return college, nil
}

func (e *Engine) resolveProgram(ctx context.Context, college *model.College, p *model.ProcessedCutoff, summary *Summary) (*model.Program, error) {
	normalized := reference.NormalizeKey(p.ProgramText)
	program, err := e.store.FindProgram(ctx, college.ID, normalized)
	if err != nil {
		return nil, err
	}
	if program != nil {
		return program, nil
	}

	program = &model.Program{
		CollegeID:      college.ID,
		Name:           p.ProgramText,
		NormalizedName: normalized,
	}
	summary.ProgramsCreated++
	if e.opts.DryRun {
		return program, nil
	}
	if err := e.store.CreateProgram(ctx, program); err != nil {
		return nil, err
	}
	if err := e.auditCreate(ctx, "program", program.ID, program); err != nil {
		return nil, err
	}
	return program, nil
}

func (e *Engine) auditCreate(ctx context.Context, entity string, id int64, after any) error {
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return eris.Wrapf(err, "promote: marshal %s audit", entity)
	}
	return e.store.AppendAudit(ctx, &model.AuditEntry{
		Entity:   entity,
		EntityID: id,
		Action:   "create",
		After:    afterJSON,
	})
}

func (e *Engine) auditCutoff(ctx context.Context, before, after *model.Cutoff, created bool) error {
	action := "update"
	var beforeJSON []byte
	if created {
		action = "create"
	} else {
		var err error
		beforeJSON, err = json.Marshal(before)
		if err != nil {
			return eris.Wrap(err, "promote: marshal cutoff audit before")
		}
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return eris.Wrap(err, "promote: marshal cutoff audit after")
	}
	return e.store.AppendAudit(ctx, &model.AuditEntry{
		Entity:   "cutoff",
		EntityID: after.ID,
		Action:   action,
		Before:   beforeJSON,
		After:    afterJSON,
	})
}
