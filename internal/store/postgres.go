package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/neetlogiq/cutoff-cli/internal/corrections"
	"github.com/neetlogiq/cutoff-cli/internal/db"
	"github.com/neetlogiq/cutoff-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest staging operations.
var preparedStatements = map[string]string{
	"get_session":             `SELECT id, filename, file_type, authority, raw_imported, processed, verified, migrated, status, started_at, completed_at FROM import_sessions WHERE id = $1`,
	"update_session_counters": `UPDATE import_sessions SET raw_imported = $1, processed = $2, verified = $3, migrated = $4 WHERE id = $5`,
	"update_processed_status": `UPDATE processed_cutoffs SET status = $1, manual_verified = $2, updated_at = $3 WHERE id = $4`,
	"bump_rule_stats":         `UPDATE correction_rules SET usage_count = usage_count + $1, success_count = success_count + $2, updated_at = $3 WHERE id = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS import_sessions (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	file_type    TEXT NOT NULL DEFAULT '',
	authority    TEXT NOT NULL DEFAULT '',
	raw_imported INTEGER NOT NULL DEFAULT 0,
	processed    INTEGER NOT NULL DEFAULT 0,
	verified     INTEGER NOT NULL DEFAULT 0,
	migrated     INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'active',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS raw_cutoffs (
	id           BIGSERIAL PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES import_sessions(id),
	row_number   INTEGER NOT NULL,
	payload      JSONB NOT NULL,
	rank_text    TEXT NOT NULL DEFAULT '',
	quota        TEXT NOT NULL DEFAULT '',
	college_text TEXT NOT NULL DEFAULT '',
	course_text  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	round        TEXT NOT NULL DEFAULT '',
	year         INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS processed_cutoffs (
	id               BIGSERIAL PRIMARY KEY,
	raw_id           BIGINT NOT NULL REFERENCES raw_cutoffs(id),
	session_id       TEXT NOT NULL,
	college_id       BIGINT,
	program_id       BIGINT,
	college_text     TEXT NOT NULL,
	program_text     TEXT NOT NULL,
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	year             INTEGER NOT NULL DEFAULT 0,
	round            TEXT NOT NULL DEFAULT '',
	authority        TEXT NOT NULL DEFAULT '',
	quota            TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL,
	opening_rank     INTEGER NOT NULL DEFAULT 0,
	closing_rank     INTEGER NOT NULL DEFAULT 0,
	seats_available  INTEGER NOT NULL DEFAULT 0,
	seats_filled     INTEGER NOT NULL DEFAULT 0,
	confidence_score INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	manual_verified  BOOLEAN NOT NULL DEFAULT false,
	notes            TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (raw_id, category)
);

CREATE TABLE IF NOT EXISTS manual_corrections (
	id              BIGSERIAL PRIMARY KEY,
	processed_id    BIGINT NOT NULL REFERENCES processed_cutoffs(id),
	field           TEXT NOT NULL,
	original_value  TEXT NOT NULL DEFAULT '',
	corrected_value TEXT NOT NULL DEFAULT '',
	correction_type TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS correction_rules (
	id            BIGSERIAL PRIMARY KEY,
	category      TEXT NOT NULL,
	error_type    TEXT NOT NULL,
	pattern       TEXT NOT NULL,
	regex_pattern TEXT NOT NULL,
	regex_flags   TEXT NOT NULL DEFAULT '',
	replacement   TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 0,
	active        BOOLEAN NOT NULL DEFAULT true,
	usage_count   BIGINT NOT NULL DEFAULT 0,
	success_count BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS colleges (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'active',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (normalized_name, city, state)
);

CREATE TABLE IF NOT EXISTS programs (
	id              BIGSERIAL PRIMARY KEY,
	college_id      BIGINT NOT NULL REFERENCES colleges(id),
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (college_id, normalized_name)
);

CREATE TABLE IF NOT EXISTS cutoffs (
	id              BIGSERIAL PRIMARY KEY,
	college_id      BIGINT NOT NULL REFERENCES colleges(id),
	program_id      BIGINT NOT NULL REFERENCES programs(id),
	year            INTEGER NOT NULL,
	round           TEXT NOT NULL,
	authority       TEXT NOT NULL,
	quota           TEXT NOT NULL,
	category        TEXT NOT NULL,
	opening_rank    INTEGER NOT NULL DEFAULT 0,
	closing_rank    INTEGER NOT NULL DEFAULT 0,
	seats_available INTEGER NOT NULL DEFAULT 0,
	seats_filled    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'active',
	source_file     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (college_id, program_id, year, round, authority, quota, category)
);

CREATE TABLE IF NOT EXISTS migration_audit (
	id          BIGSERIAL PRIMARY KEY,
	entity      TEXT NOT NULL,
	entity_id   BIGINT NOT NULL,
	action      TEXT NOT NULL,
	before_data JSONB,
	after_data  JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON import_sessions(status);
CREATE INDEX IF NOT EXISTS idx_raw_session ON raw_cutoffs(session_id);
CREATE INDEX IF NOT EXISTS idx_processed_session ON processed_cutoffs(session_id);
CREATE INDEX IF NOT EXISTS idx_processed_status ON processed_cutoffs(status);
CREATE INDEX IF NOT EXISTS idx_processed_confidence ON processed_cutoffs(confidence_score);
CREATE INDEX IF NOT EXISTS idx_corrections_processed ON manual_corrections(processed_id);
CREATE INDEX IF NOT EXISTS idx_rules_category ON correction_rules(category, active);
CREATE INDEX IF NOT EXISTS idx_colleges_normalized ON colleges(normalized_name);
CREATE INDEX IF NOT EXISTS idx_programs_college ON programs(college_id);
CREATE INDEX IF NOT EXISTS idx_cutoffs_year_authority ON cutoffs(year, authority);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON migration_audit(entity, entity_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *model.ImportSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	if session.Status == "" {
		session.Status = model.SessionActive
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_sessions (id, filename, file_type, authority, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.Filename, session.FileType, session.Authority, string(session.Status), session.StartedAt,
	)
	return eris.Wrap(err, "postgres: insert session")
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.ImportSession, error) {
	var sess model.ImportSession
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, file_type, authority, raw_imported, processed, verified, migrated, status, started_at, completed_at
		 FROM import_sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.Filename, &sess.FileType, &sess.Authority,
		&sess.RawImported, &sess.Processed, &sess.Verified, &sess.Migrated,
		&sess.Status, &sess.StartedAt, &sess.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "session %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	return &sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]model.ImportSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, file_type, authority, raw_imported, processed, verified, migrated, status, started_at, completed_at
		 FROM import_sessions ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.ImportSession
	for rows.Next() {
		var sess model.ImportSession
		if err := rows.Scan(&sess.ID, &sess.Filename, &sess.FileType, &sess.Authority,
			&sess.RawImported, &sess.Processed, &sess.Verified, &sess.Migrated,
			&sess.Status, &sess.StartedAt, &sess.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) UpdateSessionCounters(ctx context.Context, id string, counters model.SessionCounters) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_sessions SET raw_imported = $1, processed = $2, verified = $3, migrated = $4 WHERE id = $5`,
		counters.RawImported, counters.Processed, counters.Verified, counters.Migrated, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session counters %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "session %s", id)
	}
	return nil
}

func (s *PostgresStore) CompleteSession(ctx context.Context, id string, status model.SessionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_sessions SET status = $1, completed_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete session %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "session %s", id)
	}
	return nil
}

// rawColumns is the COPY column order for raw_cutoffs.
var rawColumns = []string{
	"session_id", "row_number", "payload", "rank_text", "quota",
	"college_text", "course_text", "category", "round", "year",
}

// InsertRawCutoffs bulk-loads raw rows via COPY, then reads back the
// generated ids keyed by row number.
func (s *PostgresStore) InsertRawCutoffs(ctx context.Context, records []model.RawCutoff) ([]model.RawCutoff, error) {
	if len(records) == 0 {
		return records, nil
	}
	sessionID := records[0].SessionID

	copyRows := make([][]any, 0, len(records))
	for i := range records {
		payloadJSON, err := json.Marshal(records[i].Payload)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: marshal payload row %d", records[i].RowNumber)
		}
		copyRows = append(copyRows, []any{
			records[i].SessionID, records[i].RowNumber, payloadJSON,
			records[i].Rank, records[i].Quota, records[i].CollegeText,
			records[i].CourseText, records[i].Category, records[i].Round, records[i].Year,
		})
	}

	if _, err := db.CopyFrom(ctx, s.pool, "raw_cutoffs", rawColumns, copyRows); err != nil {
		return nil, eris.Wrap(err, "postgres: insert raw cutoffs")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, row_number FROM raw_cutoffs WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read back raw ids")
	}
	defer rows.Close()

	idByRow := make(map[int]int64, len(records))
	for rows.Next() {
		var id int64
		var rowNum int
		if err := rows.Scan(&id, &rowNum); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw id")
		}
		idByRow[rowNum] = id
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: read back raw ids iterate")
	}

	for i := range records {
		records[i].ID = idByRow[records[i].RowNumber]
	}
	return records, nil
}

func (s *PostgresStore) ListRawCutoffs(ctx context.Context, sessionID string) ([]model.RawCutoff, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, row_number, payload, rank_text, quota, college_text, course_text, category, round, year, created_at
		 FROM raw_cutoffs WHERE session_id = $1 ORDER BY row_number`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw cutoffs")
	}
	defer rows.Close()

	var records []model.RawCutoff
	for rows.Next() {
		var r model.RawCutoff
		var payloadJSON []byte
		if err := rows.Scan(&r.ID, &r.SessionID, &r.RowNumber, &payloadJSON,
			&r.Rank, &r.Quota, &r.CollegeText, &r.CourseText,
			&r.Category, &r.Round, &r.Year, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw cutoff")
		}
		if err := json.Unmarshal(payloadJSON, &r.Payload); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal payload")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list raw cutoffs iterate")
}

// processedColumns is the upsert column order for processed_cutoffs.
var processedColumns = []string{
	"raw_id", "session_id", "college_id", "program_id", "college_text",
	"program_text", "city", "state", "year", "round", "authority", "quota",
	"category", "opening_rank", "closing_rank", "seats_available",
	"seats_filled", "confidence_score", "status", "manual_verified", "notes",
}

// InsertProcessedCutoffs bulk-upserts processed records keyed on
// (raw_id, category) so re-processing a session overwrites rather than
// duplicates.
func (s *PostgresStore) InsertProcessedCutoffs(ctx context.Context, records []model.ProcessedCutoff) (int64, error) {
	rows := make([][]any, 0, len(records))
	for i := range records {
		p := &records[i]
		if p.Status == "" {
			p.Status = model.RecordPending
		}
		rows = append(rows, []any{
			p.RawID, p.SessionID, p.CollegeID, p.ProgramID, p.CollegeText,
			p.ProgramText, p.City, p.State, p.Year, p.Round, p.Authority,
			p.Quota, p.Category, p.OpeningRank, p.ClosingRank,
			p.SeatsAvailable, p.SeatsFilled, p.Confidence, string(p.Status),
			p.ManualVerified, p.Notes,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "processed_cutoffs",
		Columns:      processedColumns,
		ConflictKeys: []string{"raw_id", "category"},
	}, rows)
	return n, eris.Wrap(err, "postgres: insert processed cutoffs")
}

const processedSelect = `SELECT id, raw_id, session_id, college_id, program_id, college_text, program_text, city, state, year, round, authority, quota, category, opening_rank, closing_rank, seats_available, seats_filled, confidence_score, status, manual_verified, notes, created_at, updated_at FROM processed_cutoffs`

func scanProcessed(row pgx.Row) (*model.ProcessedCutoff, error) {
	var p model.ProcessedCutoff
	err := row.Scan(&p.ID, &p.RawID, &p.SessionID, &p.CollegeID, &p.ProgramID,
		&p.CollegeText, &p.ProgramText, &p.City, &p.State, &p.Year, &p.Round,
		&p.Authority, &p.Quota, &p.Category, &p.OpeningRank, &p.ClosingRank,
		&p.SeatsAvailable, &p.SeatsFilled, &p.Confidence, &p.Status,
		&p.ManualVerified, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListProcessedCutoffs(ctx context.Context, filter ProcessedFilter) ([]model.ProcessedCutoff, error) {
	query := processedSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(` AND session_id = $%d`, argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.MaxConfidence != nil {
		query += fmt.Sprintf(` AND confidence_score <= $%d`, argIdx)
		args = append(args, *filter.MaxConfidence)
		argIdx++
	}
	query += ` ORDER BY id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list processed cutoffs")
	}
	defer rows.Close()

	var records []model.ProcessedCutoff
	for rows.Next() {
		p, err := scanProcessed(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan processed cutoff")
		}
		records = append(records, *p)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list processed cutoffs iterate")
}

func (s *PostgresStore) GetProcessedCutoff(ctx context.Context, id int64) (*model.ProcessedCutoff, error) {
	p, err := scanProcessed(s.pool.QueryRow(ctx, processedSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "processed record %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get processed cutoff %d", id)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProcessedStatus(ctx context.Context, id int64, status model.RecordStatus, manualVerified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE processed_cutoffs SET status = $1, manual_verified = $2, updated_at = $3 WHERE id = $4`,
		string(status), manualVerified, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update processed status %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "processed record %d", id)
	}
	return nil
}

func (s *PostgresStore) UpdateProcessedEntities(ctx context.Context, id int64, collegeID, programID *int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE processed_cutoffs SET college_id = $1, program_id = $2, updated_at = $3 WHERE id = $4`,
		collegeID, programID, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update processed entities %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "processed record %d", id)
	}
	return nil
}

func (s *PostgresStore) MarkMigrated(ctx context.Context, id int64) error {
	return s.UpdateProcessedStatus(ctx, id, model.RecordMigrated, false)
}

func (s *PostgresStore) AddManualCorrection(ctx context.Context, correction *model.ManualCorrection) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO manual_corrections (processed_id, field, original_value, corrected_value, correction_type)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		correction.ProcessedID, correction.Field, correction.OriginalValue,
		correction.CorrectedValue, correction.CorrectionType,
	).Scan(&correction.ID, &correction.CreatedAt)
	return eris.Wrap(err, "postgres: add manual correction")
}

func (s *PostgresStore) ListManualCorrections(ctx context.Context, processedID int64) ([]model.ManualCorrection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, processed_id, field, original_value, corrected_value, correction_type, created_at
		 FROM manual_corrections WHERE processed_id = $1 ORDER BY id`,
		processedID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list manual corrections")
	}
	defer rows.Close()

	var corrections []model.ManualCorrection
	for rows.Next() {
		var c model.ManualCorrection
		if err := rows.Scan(&c.ID, &c.ProcessedID, &c.Field, &c.OriginalValue,
			&c.CorrectedValue, &c.CorrectionType, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan manual correction")
		}
		corrections = append(corrections, c)
	}
	return corrections, eris.Wrap(rows.Err(), "postgres: list manual corrections iterate")
}

const ruleSelect = `SELECT id, category, error_type, pattern, regex_pattern, regex_flags, replacement, priority, active, usage_count, success_count, created_at, updated_at FROM correction_rules`

func (s *PostgresStore) ListRules(ctx context.Context, category model.RuleCategory, activeOnly bool) ([]model.CorrectionRule, error) {
	query := ruleSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, string(category))
		argIdx++
	}
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY priority DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rules")
	}
	defer rows.Close()

	var rules []model.CorrectionRule
	for rows.Next() {
		var r model.CorrectionRule
		if err := rows.Scan(&r.ID, &r.Category, &r.ErrorType, &r.Pattern,
			&r.RegexPattern, &r.RegexFlags, &r.Replacement, &r.Priority,
			&r.Active, &r.UsageCount, &r.SuccessCount, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rule")
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: list rules iterate")
}

func (s *PostgresStore) CreateRule(ctx context.Context, rule *model.CorrectionRule) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO correction_rules (category, error_type, pattern, regex_pattern, regex_flags, replacement, priority, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`,
		string(rule.Category), string(rule.ErrorType), rule.Pattern,
		rule.RegexPattern, rule.RegexFlags, rule.Replacement, rule.Priority, rule.Active,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	return eris.Wrap(err, "postgres: create rule")
}

func (s *PostgresStore) CountRules(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM correction_rules`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count rules")
}

func (s *PostgresStore) SetRuleActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE correction_rules SET active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set rule active %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "rule %d", id)
	}
	return nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM correction_rules WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete rule %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "rule %d", id)
	}
	return nil
}

func (s *PostgresStore) BumpRuleStats(ctx context.Context, stats map[int64]corrections.RuleStat) error {
	now := time.Now().UTC()
	for id, stat := range stats {
		_, err := s.pool.Exec(ctx,
			`UPDATE correction_rules SET usage_count = usage_count + $1, success_count = success_count + $2, updated_at = $3 WHERE id = $4`,
			stat.Usage, stat.Success, now, id,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: bump rule stats %d", id)
		}
	}
	return nil
}

func (s *PostgresStore) ListColleges(ctx context.Context) ([]model.College, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, normalized_name, type, city, state, status, created_at FROM colleges ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list colleges")
	}
	defer rows.Close()

	var colleges []model.College
	for rows.Next() {
		var c model.College
		if err := rows.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Type,
			&c.City, &c.State, &c.Status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan college")
		}
		colleges = append(colleges, c)
	}
	return colleges, eris.Wrap(rows.Err(), "postgres: list colleges iterate")
}

func (s *PostgresStore) ListPrograms(ctx context.Context) ([]model.Program, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, college_id, name, normalized_name, type, created_at FROM programs ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list programs")
	}
	defer rows.Close()

	var programs []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.CollegeID, &p.Name, &p.NormalizedName,
			&p.Type, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan program")
		}
		programs = append(programs, p)
	}
	return programs, eris.Wrap(rows.Err(), "postgres: list programs iterate")
}

// FindCollege returns nil without error when no row matches.
func (s *PostgresStore) FindCollege(ctx context.Context, normalizedName, city, state string) (*model.College, error) {
	var c model.College
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, normalized_name, type, city, state, status, created_at
		 FROM colleges WHERE normalized_name = $1 AND city = $2 AND state = $3`,
		normalizedName, city, state,
	).Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Type, &c.City, &c.State, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find college")
	}
	return &c, nil
}

func (s *PostgresStore) CreateCollege(ctx context.Context, college *model.College) error {
	if college.Status == "" {
		college.Status = "active"
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO colleges (name, normalized_name, type, city, state, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		college.Name, college.NormalizedName, college.Type, college.City, college.State, college.Status,
	).Scan(&college.ID, &college.CreatedAt)
	return eris.Wrap(err, "postgres: create college")
}

// FindProgram returns nil without error when no row matches.
func (s *PostgresStore) FindProgram(ctx context.Context, collegeID int64, normalizedName string) (*model.Program, error) {
	var p model.Program
	err := s.pool.QueryRow(ctx,
		`SELECT id, college_id, name, normalized_name, type, created_at
		 FROM programs WHERE college_id = $1 AND normalized_name = $2`,
		collegeID, normalizedName,
	).Scan(&p.ID, &p.CollegeID, &p.Name, &p.NormalizedName, &p.Type, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find program")
	}
	return &p, nil
}

func (s *PostgresStore) CreateProgram(ctx context.Context, program *model.Program) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO programs (college_id, name, normalized_name, type)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		program.CollegeID, program.Name, program.NormalizedName, program.Type,
	).Scan(&program.ID, &program.CreatedAt)
	return eris.Wrap(err, "postgres: create program")
}

const cutoffSelect = `SELECT id, college_id, program_id, year, round, authority, quota, category, opening_rank, closing_rank, seats_available, seats_filled, status, source_file, created_at, updated_at FROM cutoffs`

// GetCutoff returns nil without error when no row matches the key.
func (s *PostgresStore) GetCutoff(ctx context.Context, key model.CutoffKey) (*model.Cutoff, error) {
	var c model.Cutoff
	err := s.pool.QueryRow(ctx,
		cutoffSelect+` WHERE college_id = $1 AND program_id = $2 AND year = $3 AND round = $4 AND authority = $5 AND quota = $6 AND category = $7`,
		key.CollegeID, key.ProgramID, key.Year, key.Round, key.Authority, key.Quota, key.Category,
	).Scan(&c.ID, &c.CollegeID, &c.ProgramID, &c.Year, &c.Round, &c.Authority,
		&c.Quota, &c.Category, &c.OpeningRank, &c.ClosingRank, &c.SeatsAvailable,
		&c.SeatsFilled, &c.Status, &c.SourceFile, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cutoff")
	}
	return &c, nil
}

// UpsertCutoff inserts or updates the row for the cutoff's natural key.
// Returns true when a new row was created.
func (s *PostgresStore) UpsertCutoff(ctx context.Context, cutoff *model.Cutoff) (bool, error) {
	if cutoff.Status == "" {
		cutoff.Status = "active"
	}
	now := time.Now().UTC()

	var created bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cutoffs (college_id, program_id, year, round, authority, quota, category, opening_rank, closing_rank, seats_available, seats_filled, status, source_file, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (college_id, program_id, year, round, authority, quota, category)
		 DO UPDATE SET opening_rank = EXCLUDED.opening_rank, closing_rank = EXCLUDED.closing_rank,
		 seats_available = EXCLUDED.seats_available, seats_filled = EXCLUDED.seats_filled,
		 status = EXCLUDED.status, source_file = EXCLUDED.source_file, updated_at = EXCLUDED.updated_at
		 RETURNING id, (xmax = 0)`,
		cutoff.CollegeID, cutoff.ProgramID, cutoff.Year, cutoff.Round,
		cutoff.Authority, cutoff.Quota, cutoff.Category, cutoff.OpeningRank,
		cutoff.ClosingRank, cutoff.SeatsAvailable, cutoff.SeatsFilled,
		cutoff.Status, cutoff.SourceFile, now,
	).Scan(&cutoff.ID, &created)
	if err != nil {
		return false, eris.Wrap(err, "postgres: upsert cutoff")
	}
	cutoff.UpdatedAt = now
	return created, nil
}

func (s *PostgresStore) ListCutoffs(ctx context.Context, filter CutoffFilter) ([]model.Cutoff, error) {
	query := cutoffSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Authority != "" {
		query += fmt.Sprintf(` AND authority = $%d`, argIdx)
		args = append(args, filter.Authority)
		argIdx++
	}
	if filter.Year != 0 {
		query += fmt.Sprintf(` AND year = $%d`, argIdx)
		args = append(args, filter.Year)
		argIdx++
	}
	if filter.Round != "" {
		query += fmt.Sprintf(` AND round = $%d`, argIdx)
		args = append(args, filter.Round)
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	query += ` ORDER BY college_id, program_id, category`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cutoffs")
	}
	defer rows.Close()

	var cutoffs []model.Cutoff
	for rows.Next() {
		var c model.Cutoff
		if err := rows.Scan(&c.ID, &c.CollegeID, &c.ProgramID, &c.Year, &c.Round,
			&c.Authority, &c.Quota, &c.Category, &c.OpeningRank, &c.ClosingRank,
			&c.SeatsAvailable, &c.SeatsFilled, &c.Status, &c.SourceFile,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cutoff")
		}
		cutoffs = append(cutoffs, c)
	}
	return cutoffs, eris.Wrap(rows.Err(), "postgres: list cutoffs iterate")
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO migration_audit (entity, entity_id, action, before_data, after_data)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		entry.Entity, entry.EntityID, entry.Action, entry.Before, entry.After,
	).Scan(&entry.ID, &entry.CreatedAt)
	return eris.Wrap(err, "postgres: append audit")
}

// ResetStaging wipes all staging tables inside one transaction. Canonical
// tables and correction rules are untouched.
func (s *PostgresStore) ResetStaging(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: reset staging: begin tx")
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM manual_corrections`,
		`DELETE FROM processed_cutoffs`,
		`DELETE FROM raw_cutoffs`,
		`DELETE FROM import_sessions`,
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "postgres: reset staging: %s", stmt)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: reset staging: commit")
}
