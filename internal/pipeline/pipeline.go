// Package pipeline orchestrates one import session: read the input file,
// stage raw rows, then normalize, match, and parse each row into
// processed staging records.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/neetlogiq/cutoff-cli/internal/config"
	"github.com/neetlogiq/cutoff-cli/internal/corrections"
	"github.com/neetlogiq/cutoff-cli/internal/fetcher"
	"github.com/neetlogiq/cutoff-cli/internal/filemeta"
	"github.com/neetlogiq/cutoff-cli/internal/match"
	"github.com/neetlogiq/cutoff-cli/internal/model"
	"github.com/neetlogiq/cutoff-cli/internal/rankparse"
	"github.com/neetlogiq/cutoff-cli/internal/reference"
)

// Store is the subset of the persistence interface the pipeline needs.
type Store interface {
	CreateSession(ctx context.Context, session *model.ImportSession) error
	CompleteSession(ctx context.Context, id string, status model.SessionStatus) error
	UpdateSessionCounters(ctx context.Context, id string, counters model.SessionCounters) error
	InsertRawCutoffs(ctx context.Context, records []model.RawCutoff) ([]model.RawCutoff, error)
	InsertProcessedCutoffs(ctx context.Context, records []model.ProcessedCutoff) (int64, error)
}

// requiredColumns is the strict input-row schema; college_location is
// accepted but optional. A file missing any of these columns entirely is
// unusable and rejected before a session is created.
var requiredColumns = []string{"round", "quota", "college_name", "course_name", "all_ranks"}

// RowError records why one input row was skipped.
type RowError struct {
	Row    int    `json:"row"`
	Kind   string `json:"kind"` // validation | rank_parse
	Reason string `json:"reason"`
}

// Summary is the final report of one import session.
type Summary struct {
	SessionID   string     `json:"session_id"`
	Filename    string     `json:"filename"`
	Authority   string     `json:"authority"`
	Year        int        `json:"year"`
	Round       string     `json:"round"`
	RawImported int        `json:"raw_imported"`
	Processed   int        `json:"processed"`
	Successful  int        `json:"successful"` // processed records at full confidence
	Errors      []RowError `json:"errors,omitempty"`
}

// SuccessRate is the share of processed records at full confidence.
func (s *Summary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Processed)
}

// Pipeline runs import sessions. Construct one per run; the corrections
// applier and reference snapshot are frozen for the session.
type Pipeline struct {
	cfg     config.ImportConfig
	store   Store
	applier *corrections.Applier
	matcher *match.Matcher
	log     *zap.Logger
}

// New creates a pipeline with a frozen rule applier and reference matcher.
func New(cfg config.ImportConfig, st Store, applier *corrections.Applier, matcher *match.Matcher) *Pipeline {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 1000
	}
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		applier: applier,
		matcher: matcher,
		log:     zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run imports one file. Only a file read failure is fatal; every row-level
// problem is recorded in the summary and processing continues.
func (p *Pipeline) Run(ctx context.Context, path string) (*Summary, error) {
	table, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read %s", path)
	}
	if err := validateHeader(table); err != nil {
		return nil, err
	}

	filename := filepath.Base(path)
	meta := p.resolveMeta(filename)

	session := &model.ImportSession{
		Filename:  filename,
		FileType:  strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
		Authority: meta.Authority,
	}
	if err := p.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	p.log.Info("import session started",
		zap.String("session_id", session.ID),
		zap.String("filename", filename),
		zap.String("authority", meta.Authority),
		zap.Int("year", meta.Year),
		zap.String("round", meta.Round),
		zap.Int("rows", len(table.Rows)))

	summary, err := p.run(ctx, session, table, meta)
	if err != nil {
		if cerr := p.store.CompleteSession(ctx, session.ID, model.SessionFailed); cerr != nil {
			p.log.Warn("failed to mark session failed", zap.Error(cerr))
		}
		return nil, err
	}

	if err := p.store.CompleteSession(ctx, session.ID, model.SessionCompleted); err != nil {
		return nil, err
	}

	p.log.Info("import session finished",
		zap.String("session_id", session.ID),
		zap.Int("raw_imported", summary.RawImported),
		zap.Int("processed", summary.Processed),
		zap.Int("successful", summary.Successful),
		zap.Int("errors", len(summary.Errors)),
		zap.Float64("success_rate", summary.SuccessRate()))
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, session *model.ImportSession, table *fetcher.Rows, meta *filemeta.FileMeta) (*Summary, error) {
	summary := &Summary{
		SessionID: session.ID,
		Filename:  session.Filename,
		Authority: meta.Authority,
		Year:      meta.Year,
		Round:     meta.Round,
	}

	// Stage every row verbatim first; validation happens during
	// processing so even broken rows stay inspectable.
	raw, err := p.stageRaw(ctx, session.ID, table, meta)
	if err != nil {
		return nil, err
	}
	summary.RawImported = len(raw)

	counters := model.SessionCounters{RawImported: len(raw)}
	if err := p.store.UpdateSessionCounters(ctx, session.ID, counters); err != nil {
		return nil, err
	}

	var batch []model.ProcessedCutoff
	for i := range raw {
		records, rowErr := p.processRow(&raw[i], meta)
		if rowErr != nil {
			summary.Errors = append(summary.Errors, *rowErr)
			continue
		}
		for _, rec := range records {
			if rec.Confidence == 2*model.ConfidencePerEntity {
				summary.Successful++
			}
		}
		batch = append(batch, records...)
		summary.Processed += len(records)

		if len(batch) >= insertBatchSize {
			if _, err := p.store.InsertProcessedCutoffs(ctx, batch); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
		if (i+1)%p.cfg.ProgressInterval == 0 {
			p.log.Info("processing progress",
				zap.String("session_id", session.ID),
				zap.Int("rows_done", i+1),
				zap.Int("rows_total", len(raw)),
				zap.Int("processed", summary.Processed))
		}
	}
	if len(batch) > 0 {
		if _, err := p.store.InsertProcessedCutoffs(ctx, batch); err != nil {
			return nil, err
		}
	}

	counters.Processed = summary.Processed
	counters.Verified = summary.Successful
	if err := p.store.UpdateSessionCounters(ctx, session.ID, counters); err != nil {
		return nil, err
	}

	// Usage statistics are best-effort; Flush logs failures itself.
	if src, ok := p.store.(corrections.RuleSource); ok {
		p.applier.Stats().Flush(ctx, src)
	}
	return summary, nil
}

const insertBatchSize = 500

func validateHeader(table *fetcher.Rows) error {
	idx := table.Index()
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("pipeline: input file missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// resolveMeta extracts metadata from the filename, falling back to
// configured defaults field by field.
func (p *Pipeline) resolveMeta(filename string) *filemeta.FileMeta {
	meta := filemeta.Extract(filename)
	if meta == nil {
		meta = &filemeta.FileMeta{}
	}
	if meta.Authority == "" {
		meta.Authority = p.cfg.DefaultAuthority
	}
	if meta.Year == 0 {
		meta.Year = p.cfg.DefaultYear
	}
	if meta.Round == "" {
		meta.Round = p.cfg.DefaultRound
	}
	return meta
}

func (p *Pipeline) stageRaw(ctx context.Context, sessionID string, table *fetcher.Rows, meta *filemeta.FileMeta) ([]model.RawCutoff, error) {
	idx := table.Index()
	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]model.RawCutoff, 0, len(table.Rows))
	for n, row := range table.Rows {
		payload := make(map[string]string, len(table.Header))
		for i, h := range table.Header {
			if i < len(row) {
				payload[strings.ToLower(strings.TrimSpace(h))] = row[i]
			}
		}
		records = append(records, model.RawCutoff{
			SessionID:   sessionID,
			RowNumber:   n + 1,
			Payload:     payload,
			Rank:        cell(row, "all_ranks"),
			Quota:       cell(row, "quota"),
			CollegeText: cell(row, "college_name"),
			CourseText:  cell(row, "course_name"),
			Round:       cell(row, "round"),
			Year:        meta.Year,
		})
	}
	return p.store.InsertRawCutoffs(ctx, records)
}

// processRow turns one raw row into processed records, one per parsed
// (category, rank) pair.
func (p *Pipeline) processRow(raw *model.RawCutoff, meta *filemeta.FileMeta) ([]model.ProcessedCutoff, *RowError) {
	if raw.CollegeText == "" || raw.CourseText == "" {
		return nil, &RowError{Row: raw.RowNumber, Kind: "validation", Reason: "missing college_name or course_name"}
	}

	collegeText := p.applier.Apply(raw.CollegeText, model.RuleCollegeName).Corrected
	programText := p.applier.Apply(raw.CourseText, model.RuleProgramName).Corrected
	city, state := extractLocation(collegeText, raw.Payload["college_location"])

	entries, err := rankparse.Parse(raw.Rank)
	if err != nil {
		return nil, &RowError{Row: raw.RowNumber, Kind: "rank_parse", Reason: err.Error()}
	}

	var collegeID, programID *int64
	confidence := 0
	if res := p.matcher.Match(collegeText, reference.TypeCollege); res != nil {
		collegeID = &res.Entity.ID
		confidence += model.ConfidencePerEntity
	}
	if res := p.matcher.Match(programText, reference.TypeProgram); res != nil {
		programID = &res.Entity.ID
		confidence += model.ConfidencePerEntity
	}

	status := model.RecordPending
	if confidence == 2*model.ConfidencePerEntity {
		status = model.RecordVerified
	}

	round := raw.Round
	if round == "" {
		round = meta.Round
	}
	quota := raw.Quota
	if quota == "" {
		quota = p.cfg.DefaultQuota
	}

	records := make([]model.ProcessedCutoff, 0, len(entries))
	for _, entry := range entries {
		records = append(records, model.ProcessedCutoff{
			RawID:       raw.ID,
			SessionID:   raw.SessionID,
			CollegeID:   collegeID,
			ProgramID:   programID,
			CollegeText: collegeText,
			ProgramText: programText,
			City:        city,
			State:       state,
			Year:        meta.Year,
			Round:       round,
			Authority:   meta.Authority,
			Quota:       quota,
			Category:    entry.Category,
			ClosingRank: entry.Rank,
			Confidence:  confidence,
			Status:      status,
		})
	}
	return records, nil
}

// extractLocation derives city and state for the migration dedup key. The
// college_location column ("City" or "City, State") wins; otherwise the
// trailing comma segment of the college text is taken as the city.
func extractLocation(collegeText, location string) (city, state string) {
	if location = strings.TrimSpace(location); location != "" {
		if before, after, found := strings.Cut(location, ","); found {
			return normalizePlace(before), normalizePlace(after)
		}
		return normalizePlace(location), ""
	}
	if i := strings.LastIndex(collegeText, ","); i >= 0 {
		return normalizePlace(collegeText[i+1:]), ""
	}
	return "", ""
}

func normalizePlace(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
