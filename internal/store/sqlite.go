package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/neetlogiq/cutoff-cli/internal/corrections"
	"github.com/neetlogiq/cutoff-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS raw_cutoffs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL REFERENCES import_sessions(id),
	row_number   INTEGER NOT NULL,
	payload      TEXT NOT NULL,
	rank_text    TEXT NOT NULL DEFAULT '',
	quota        TEXT NOT NULL DEFAULT '',
	college_text TEXT NOT NULL DEFAULT '',
	course_text  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	round        TEXT NOT NULL DEFAULT '',
	year         INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS processed_cutoffs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_id           INTEGER NOT NULL REFERENCES raw_cutoffs(id),
	session_id       TEXT NOT NULL,
	college_id       INTEGER,
	program_id       INTEGER,
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
	manual_verified  INTEGER NOT NULL DEFAULT 0,
	notes            TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (raw_id, category)
);

CREATE TABLE IF NOT EXISTS manual_corrections (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	processed_id    INTEGER NOT NULL REFERENCES processed_cutoffs(id),
	field           TEXT NOT NULL,
	original_value  TEXT NOT NULL DEFAULT '',
	corrected_value TEXT NOT NULL DEFAULT '',
	correction_type TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS correction_rules (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	category      TEXT NOT NULL,
	error_type    TEXT NOT NULL,
	pattern       TEXT NOT NULL,
	regex_pattern TEXT NOT NULL,
	regex_flags   TEXT NOT NULL DEFAULT '',
	replacement   TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 0,
	active        INTEGER NOT NULL DEFAULT 1,
	usage_count   INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS colleges (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'active',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (normalized_name, city, state)
);

CREATE TABLE IF NOT EXISTS programs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	college_id      INTEGER NOT NULL REFERENCES colleges(id),
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (college_id, normalized_name)
);

CREATE TABLE IF NOT EXISTS cutoffs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	college_id      INTEGER NOT NULL REFERENCES colleges(id),
	program_id      INTEGER NOT NULL REFERENCES programs(id),
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
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (college_id, program_id, year, round, authority, quota, category)
);

CREATE TABLE IF NOT EXISTS migration_audit (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	entity      TEXT NOT NULL,
	entity_id   INTEGER NOT NULL,
	action      TEXT NOT NULL,
	before_data TEXT,
	after_data  TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_raw_session ON raw_cutoffs(session_id);
CREATE INDEX IF NOT EXISTS idx_processed_session ON processed_cutoffs(session_id);
CREATE INDEX IF NOT EXISTS idx_processed_status ON processed_cutoffs(status);
CREATE INDEX IF NOT EXISTS idx_corrections_processed ON manual_corrections(processed_id);
CREATE INDEX IF NOT EXISTS idx_rules_category ON correction_rules(category, active);
CREATE INDEX IF NOT EXISTS idx_colleges_normalized ON colleges(normalized_name);
CREATE INDEX IF NOT EXISTS idx_programs_college ON programs(college_id);
CREATE INDEX IF NOT EXISTS idx_cutoffs_year_authority ON cutoffs(year, authority);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *model.ImportSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	if session.Status == "" {
		session.Status = model.SessionActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_sessions (id, filename, file_type, authority, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.Filename, session.FileType, session.Authority, string(session.Status), session.StartedAt,
	)
	return eris.Wrap(err, "sqlite: insert session")
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.ImportSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, file_type, authority, raw_imported, processed, verified, migrated, status, started_at, completed_at
		 FROM import_sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.ImportSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, file_type, authority, raw_imported, processed, verified, migrated, status, started_at, completed_at
		 FROM import_sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.ImportSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) UpdateSessionCounters(ctx context.Context, id string, counters model.SessionCounters) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_sessions SET raw_imported = ?, processed = ?, verified = ?, migrated = ? WHERE id = ?`,
		counters.RawImported, counters.Processed, counters.Verified, counters.Migrated, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session counters %s", id)
	}
	return checkRowsAffected(res, "session", id)
}

func (s *SQLiteStore) CompleteSession(ctx context.Context, id string, status model.SessionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_sessions SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete session %s", id)
	}
	return checkRowsAffected(res, "session", id)
}

func (s *SQLiteStore) InsertRawCutoffs(ctx context.Context, records []model.RawCutoff) ([]model.RawCutoff, error) {
	if len(records) == 0 {
		return records, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert raw cutoffs: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_cutoffs (session_id, row_number, payload, rank_text, quota, college_text, course_text, category, round, year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert raw cutoffs: prepare")
	}
	defer stmt.Close()

	for i := range records {
		payloadJSON, err := json.Marshal(records[i].Payload)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: marshal payload row %d", records[i].RowNumber)
		}
		res, err := stmt.ExecContext(ctx,
			records[i].SessionID, records[i].RowNumber, string(payloadJSON),
			records[i].Rank, records[i].Quota, records[i].CollegeText,
			records[i].CourseText, records[i].Category, records[i].Round, records[i].Year,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert raw row %d", records[i].RowNumber)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: raw insert id")
		}
		records[i].ID = id
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert raw cutoffs: commit")
	}
	return records, nil
}

func (s *SQLiteStore) ListRawCutoffs(ctx context.Context, sessionID string) ([]model.RawCutoff, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, row_number, payload, rank_text, quota, college_text, course_text, category, round, year, created_at
		 FROM raw_cutoffs WHERE session_id = ? ORDER BY row_number`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw cutoffs")
	}
	defer rows.Close()

	var records []model.RawCutoff
	for rows.Next() {
		var r model.RawCutoff
		var payloadJSON string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.RowNumber, &payloadJSON,
			&r.Rank, &r.Quota, &r.CollegeText, &r.CourseText,
			&r.Category, &r.Round, &r.Year, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw cutoff")
		}
		if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal payload")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list raw cutoffs iterate")
}

func (s *SQLiteStore) InsertProcessedCutoffs(ctx context.Context, records []model.ProcessedCutoff) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert processed cutoffs: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO processed_cutoffs (raw_id, session_id, college_id, program_id, college_text, program_text, city, state, year, round, authority, quota, category, opening_rank, closing_rank, seats_available, seats_filled, confidence_score, status, manual_verified, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (raw_id, category) DO UPDATE SET
		 college_id = excluded.college_id, program_id = excluded.program_id,
		 college_text = excluded.college_text, program_text = excluded.program_text,
		 city = excluded.city, state = excluded.state, year = excluded.year,
		 round = excluded.round, authority = excluded.authority, quota = excluded.quota,
		 opening_rank = excluded.opening_rank, closing_rank = excluded.closing_rank,
		 seats_available = excluded.seats_available, seats_filled = excluded.seats_filled,
		 confidence_score = excluded.confidence_score, status = excluded.status,
		 manual_verified = excluded.manual_verified, notes = excluded.notes,
		 updated_at = datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert processed cutoffs: prepare")
	}
	defer stmt.Close()

	var n int64
	for i := range records {
		p := &records[i]
		if p.Status == "" {
			p.Status = model.RecordPending
		}
		if _, err := stmt.ExecContext(ctx,
			p.RawID, p.SessionID, p.CollegeID, p.ProgramID, p.CollegeText,
			p.ProgramText, p.City, p.State, p.Year, p.Round, p.Authority,
			p.Quota, p.Category, p.OpeningRank, p.ClosingRank,
			p.SeatsAvailable, p.SeatsFilled, p.Confidence, string(p.Status),
			p.ManualVerified, p.Notes,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert processed row raw_id=%d", p.RawID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert processed cutoffs: commit")
	}
	return n, nil
}

const sqliteProcessedSelect = `SELECT id, raw_id, session_id, college_id, program_id, college_text, program_text, city, state, year, round, authority, quota, category, opening_rank, closing_rank, seats_available, seats_filled, confidence_score, status, manual_verified, notes, created_at, updated_at FROM processed_cutoffs`

func (s *SQLiteStore) ListProcessedCutoffs(ctx context.Context, filter ProcessedFilter) ([]model.ProcessedCutoff, error) {
	query := sqliteProcessedSelect + ` WHERE 1=1`
	var args []any

	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MaxConfidence != nil {
		query += ` AND confidence_score <= ?`
		args = append(args, *filter.MaxConfidence)
	}
	query += ` ORDER BY id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list processed cutoffs")
	}
	defer rows.Close()

	var records []model.ProcessedCutoff
	for rows.Next() {
		p, err := scanProcessedRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan processed cutoff")
		}
		records = append(records, *p)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list processed cutoffs iterate")
}

func (s *SQLiteStore) GetProcessedCutoff(ctx context.Context, id int64) (*model.ProcessedCutoff, error) {
	p, err := scanProcessedRow(s.db.QueryRowContext(ctx, sqliteProcessedSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "processed record %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get processed cutoff %d", id)
	}
	return p, nil
}

func (s *SQLiteStore) UpdateProcessedStatus(ctx context.Context, id int64, status model.RecordStatus, manualVerified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processed_cutoffs SET status = ?, manual_verified = ?, updated_at = ? WHERE id = ?`,
		string(status), manualVerified, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update processed status %d", id)
	}
	return checkRowsAffected(res, "processed record", fmt.Sprint(id))
}

func (s *SQLiteStore) UpdateProcessedEntities(ctx context.Context, id int64, collegeID, programID *int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processed_cutoffs SET college_id = ?, program_id = ?, updated_at = ? WHERE id = ?`,
		collegeID, programID, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update processed entities %d", id)
	}
	return checkRowsAffected(res, "processed record", fmt.Sprint(id))
}

func (s *SQLiteStore) MarkMigrated(ctx context.Context, id int64) error {
	return s.UpdateProcessedStatus(ctx, id, model.RecordMigrated, false)
}

func (s *SQLiteStore) AddManualCorrection(ctx context.Context, correction *model.ManualCorrection) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO manual_corrections (processed_id, field, original_value, corrected_value, correction_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		correction.ProcessedID, correction.Field, correction.OriginalValue,
		correction.CorrectedValue, correction.CorrectionType, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: add manual correction")
	}
	correction.ID, err = res.LastInsertId()
	correction.CreatedAt = now
	return eris.Wrap(err, "sqlite: manual correction id")
}

func (s *SQLiteStore) ListManualCorrections(ctx context.Context, processedID int64) ([]model.ManualCorrection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, processed_id, field, original_value, corrected_value, correction_type, created_at
		 FROM manual_corrections WHERE processed_id = ? ORDER BY id`,
		processedID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list manual corrections")
	}
	defer rows.Close()

	var out []model.ManualCorrection
	for rows.Next() {
		var c model.ManualCorrection
		if err := rows.Scan(&c.ID, &c.ProcessedID, &c.Field, &c.OriginalValue,
			&c.CorrectedValue, &c.CorrectionType, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan manual correction")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list manual corrections iterate")
}

func (s *SQLiteStore) ListRules(ctx context.Context, category model.RuleCategory, activeOnly bool) ([]model.CorrectionRule, error) {
	query := `SELECT id, category, error_type, pattern, regex_pattern, regex_flags, replacement, priority, active, usage_count, success_count, created_at, updated_at FROM correction_rules WHERE 1=1`
	var args []any

	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY priority DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rules")
	}
	defer rows.Close()

	var rules []model.CorrectionRule
	for rows.Next() {
		var r model.CorrectionRule
		if err := rows.Scan(&r.ID, &r.Category, &r.ErrorType, &r.Pattern,
			&r.RegexPattern, &r.RegexFlags, &r.Replacement, &r.Priority,
			&r.Active, &r.UsageCount, &r.SuccessCount, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rule")
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: list rules iterate")
}

func (s *SQLiteStore) CreateRule(ctx context.Context, rule *model.CorrectionRule) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO correction_rules (category, error_type, pattern, regex_pattern, regex_flags, replacement, priority, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rule.Category), string(rule.ErrorType), rule.Pattern,
		rule.RegexPattern, rule.RegexFlags, rule.Replacement, rule.Priority, rule.Active, now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: create rule")
	}
	rule.ID, err = res.LastInsertId()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return eris.Wrap(err, "sqlite: rule id")
}

func (s *SQLiteStore) CountRules(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM correction_rules`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count rules")
}

func (s *SQLiteStore) SetRuleActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE correction_rules SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set rule active %d", id)
	}
	return checkRowsAffected(res, "rule", fmt.Sprint(id))
}

func (s *SQLiteStore) DeleteRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM correction_rules WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete rule %d", id)
	}
	return checkRowsAffected(res, "rule", fmt.Sprint(id))
}

func (s *SQLiteStore) BumpRuleStats(ctx context.Context, stats map[int64]corrections.RuleStat) error {
	now := time.Now().UTC()
	for id, stat := range stats {
		_, err := s.db.ExecContext(ctx,
			`UPDATE correction_rules SET usage_count = usage_count + ?, success_count = success_count + ?, updated_at = ? WHERE id = ?`,
			stat.Usage, stat.Success, now, id,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: bump rule stats %d", id)
		}
	}
	return nil
}

func (s *SQLiteStore) ListColleges(ctx context.Context) ([]model.College, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, normalized_name, type, city, state, status, created_at FROM colleges ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list colleges")
	}
	defer rows.Close()

	var colleges []model.College
	for rows.Next() {
		var c model.College
		if err := rows.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Type,
			&c.City, &c.State, &c.Status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan college")
		}
		colleges = append(colleges, c)
	}
	return colleges, eris.Wrap(rows.Err(), "sqlite: list colleges iterate")
}

func (s *SQLiteStore) ListPrograms(ctx context.Context) ([]model.Program, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, college_id, name, normalized_name, type, created_at FROM programs ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list programs")
	}
	defer rows.Close()

	var programs []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.CollegeID, &p.Name, &p.NormalizedName,
			&p.Type, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan program")
		}
		programs = append(programs, p)
	}
	return programs, eris.Wrap(rows.Err(), "sqlite: list programs iterate")
}

func (s *SQLiteStore) FindCollege(ctx context.Context, normalizedName, city, state string) (*model.College, error) {
	var c model.College
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, normalized_name, type, city, state, status, created_at
		 FROM colleges WHERE normalized_name = ? AND city = ? AND state = ?`,
		normalizedName, city, state,
	).Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Type, &c.City, &c.State, &c.Status, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find college")
	}
	return &c, nil
}

func (s *SQLiteStore) CreateCollege(ctx context.Context, college *model.College) error {
	if college.Status == "" {
		college.Status = "active"
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO colleges (name, normalized_name, type, city, state, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		college.Name, college.NormalizedName, college.Type, college.City, college.State, college.Status, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: create college")
	}
	college.ID, err = res.LastInsertId()
	college.CreatedAt = now
	return eris.Wrap(err, "sqlite: college id")
}

func (s *SQLiteStore) FindProgram(ctx context.Context, collegeID int64, normalizedName string) (*model.Program, error) {
	var p model.Program
	err := s.db.QueryRowContext(ctx,
		`SELECT id, college_id, name, normalized_name, type, created_at
		 FROM programs WHERE college_id = ? AND normalized_name = ?`,
		collegeID, normalizedName,
	).Scan(&p.ID, &p.CollegeID, &p.Name, &p.NormalizedName, &p.Type, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find program")
	}
	return &p, nil
}

func (s *SQLiteStore) CreateProgram(ctx context.Context, program *model.Program) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO programs (college_id, name, normalized_name, type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		program.CollegeID, program.Name, program.NormalizedName, program.Type, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: create program")
	}
	program.ID, err = res.LastInsertId()
	program.CreatedAt = now
	return eris.Wrap(err, "sqlite: program id")
}

const sqliteCutoffSelect = `SELECT id, college_id, program_id, year, round, authority, quota, category, opening_rank, closing_rank, seats_available, seats_filled, status, source_file, created_at, updated_at FROM cutoffs`

func (s *SQLiteStore) GetCutoff(ctx context.Context, key model.CutoffKey) (*model.Cutoff, error) {
	var c model.Cutoff
	err := s.db.QueryRowContext(ctx,
		sqliteCutoffSelect+` WHERE college_id = ? AND program_id = ? AND year = ? AND round = ? AND authority = ? AND quota = ? AND category = ?`,
		key.CollegeID, key.ProgramID, key.Year, key.Round, key.Authority, key.Quota, key.Category,
	).Scan(&c.ID, &c.CollegeID, &c.ProgramID, &c.Year, &c.Round, &c.Authority,
		&c.Quota, &c.Category, &c.OpeningRank, &c.ClosingRank, &c.SeatsAvailable,
		&c.SeatsFilled, &c.Status, &c.SourceFile, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cutoff")
	}
	return &c, nil
}

func (s *SQLiteStore) UpsertCutoff(ctx context.Context, cutoff *model.Cutoff) (bool, error) {
	if cutoff.Status == "" {
		cutoff.Status = "active"
	}
	now := time.Now().UTC()

	existing, err := s.GetCutoff(ctx, cutoff.Key())
	if err != nil {
		return false, err
	}

	if existing != nil {
		_, err := s.db.ExecContext(ctx,
			`UPDATE cutoffs SET opening_rank = ?, closing_rank = ?, seats_available = ?, seats_filled = ?, status = ?, source_file = ?, updated_at = ? WHERE id = ?`,
			cutoff.OpeningRank, cutoff.ClosingRank, cutoff.SeatsAvailable,
			cutoff.SeatsFilled, cutoff.Status, cutoff.SourceFile, now, existing.ID,
		)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: update cutoff")
		}
		cutoff.ID = existing.ID
		cutoff.UpdatedAt = now
		return false, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cutoffs (college_id, program_id, year, round, authority, quota, category, opening_rank, closing_rank, seats_available, seats_filled, status, source_file, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cutoff.CollegeID, cutoff.ProgramID, cutoff.Year, cutoff.Round,
		cutoff.Authority, cutoff.Quota, cutoff.Category, cutoff.OpeningRank,
		cutoff.ClosingRank, cutoff.SeatsAvailable, cutoff.SeatsFilled,
		cutoff.Status, cutoff.SourceFile, now, now,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert cutoff")
	}
	cutoff.ID, err = res.LastInsertId()
	cutoff.UpdatedAt = now
	return true, eris.Wrap(err, "sqlite: cutoff id")
}

func (s *SQLiteStore) ListCutoffs(ctx context.Context, filter CutoffFilter) ([]model.Cutoff, error) {
	query := sqliteCutoffSelect + ` WHERE 1=1`
	var args []any

	if filter.Authority != "" {
		query += ` AND authority = ?`
		args = append(args, filter.Authority)
	}
	if filter.Year != 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.Round != "" {
		query += ` AND round = ?`
		args = append(args, filter.Round)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY college_id, program_id, category`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cutoffs")
	}
	defer rows.Close()

	var cutoffs []model.Cutoff
	for rows.Next() {
		var c model.Cutoff
		if err := rows.Scan(&c.ID, &c.CollegeID, &c.ProgramID, &c.Year, &c.Round,
			&c.Authority, &c.Quota, &c.Category, &c.OpeningRank, &c.ClosingRank,
			&c.SeatsAvailable, &c.SeatsFilled, &c.Status, &c.SourceFile,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cutoff")
		}
		cutoffs = append(cutoffs, c)
	}
	return cutoffs, eris.Wrap(rows.Err(), "sqlite: list cutoffs iterate")
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO migration_audit (entity, entity_id, action, before_data, after_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Entity, entry.EntityID, entry.Action, nullableJSON(entry.Before), nullableJSON(entry.After), now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: append audit")
	}
	entry.ID, err = res.LastInsertId()
	entry.CreatedAt = now
	return eris.Wrap(err, "sqlite: audit id")
}

func (s *SQLiteStore) ResetStaging(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: reset staging: begin tx")
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM manual_corrections`,
		`DELETE FROM processed_cutoffs`,
		`DELETE FROM raw_cutoffs`,
		`DELETE FROM import_sessions`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "sqlite: reset staging: %s", stmt)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: reset staging: commit")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*model.ImportSession, error) {
	var sess model.ImportSession
	var completed sql.NullTime
	err := row.Scan(&sess.ID, &sess.Filename, &sess.FileType, &sess.Authority,
		&sess.RawImported, &sess.Processed, &sess.Verified, &sess.Migrated,
		&sess.Status, &sess.StartedAt, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		sess.CompletedAt = &t
	}
	return &sess, nil
}

func scanProcessedRow(row scannable) (*model.ProcessedCutoff, error) {
	var p model.ProcessedCutoff
	var collegeID, programID sql.NullInt64
	err := row.Scan(&p.ID, &p.RawID, &p.SessionID, &collegeID, &programID,
		&p.CollegeText, &p.ProgramText, &p.City, &p.State, &p.Year, &p.Round,
		&p.Authority, &p.Quota, &p.Category, &p.OpeningRank, &p.ClosingRank,
		&p.SeatsAvailable, &p.SeatsFilled, &p.Confidence, &p.Status,
		&p.ManualVerified, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if collegeID.Valid {
		p.CollegeID = &collegeID.Int64
	}
	if programID.Valid {
		p.ProgramID = &programID.Int64
	}
	return &p, nil
}
