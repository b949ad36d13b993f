// Package store persists staging and canonical cutoff data. Two
// implementations exist: PostgresStore for the shared database and
// SQLiteStore for local offline work; the driver is chosen by config.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/neetlogiq/cutoff-cli/internal/config"
	"github.com/neetlogiq/cutoff-cli/internal/corrections"
	"github.com/neetlogiq/cutoff-cli/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = eris.New("store: not found")

// ProcessedFilter specifies criteria for listing processed staging records.
type ProcessedFilter struct {
	SessionID     string             `json:"session_id,omitempty"`
	Status        model.RecordStatus `json:"status,omitempty"`
	MaxConfidence *int               `json:"max_confidence,omitempty"`
	Limit         int                `json:"limit,omitempty"`
	Offset        int                `json:"offset,omitempty"`
}

// CutoffFilter specifies criteria for listing canonical cutoff rows.
type CutoffFilter struct {
	Authority string `json:"authority,omitempty"`
	Year      int    `json:"year,omitempty"`
	Round     string `json:"round,omitempty"`
	Category  string `json:"category,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// Import sessions
	CreateSession(ctx context.Context, session *model.ImportSession) error
	GetSession(ctx context.Context, id string) (*model.ImportSession, error)
	ListSessions(ctx context.Context, limit int) ([]model.ImportSession, error)
	UpdateSessionCounters(ctx context.Context, id string, counters model.SessionCounters) error
	CompleteSession(ctx context.Context, id string, status model.SessionStatus) error

	// Raw staging
	InsertRawCutoffs(ctx context.Context, records []model.RawCutoff) ([]model.RawCutoff, error)
	ListRawCutoffs(ctx context.Context, sessionID string) ([]model.RawCutoff, error)

	// Processed staging
	InsertProcessedCutoffs(ctx context.Context, records []model.ProcessedCutoff) (int64, error)
	ListProcessedCutoffs(ctx context.Context, filter ProcessedFilter) ([]model.ProcessedCutoff, error)
	GetProcessedCutoff(ctx context.Context, id int64) (*model.ProcessedCutoff, error)
	UpdateProcessedStatus(ctx context.Context, id int64, status model.RecordStatus, manualVerified bool) error
	UpdateProcessedEntities(ctx context.Context, id int64, collegeID, programID *int64) error
	MarkMigrated(ctx context.Context, id int64) error
	AddManualCorrection(ctx context.Context, correction *model.ManualCorrection) error
	ListManualCorrections(ctx context.Context, processedID int64) ([]model.ManualCorrection, error)

	// Correction rules
	ListRules(ctx context.Context, category model.RuleCategory, activeOnly bool) ([]model.CorrectionRule, error)
	CreateRule(ctx context.Context, rule *model.CorrectionRule) error
	CountRules(ctx context.Context) (int64, error)
	SetRuleActive(ctx context.Context, id int64, active bool) error
	DeleteRule(ctx context.Context, id int64) error
	BumpRuleStats(ctx context.Context, stats map[int64]corrections.RuleStat) error

	// Canonical entities
	ListColleges(ctx context.Context) ([]model.College, error)
	ListPrograms(ctx context.Context) ([]model.Program, error)
	FindCollege(ctx context.Context, normalizedName, city, state string) (*model.College, error)
	CreateCollege(ctx context.Context, college *model.College) error
	FindProgram(ctx context.Context, collegeID int64, normalizedName string) (*model.Program, error)
	CreateProgram(ctx context.Context, program *model.Program) error
	GetCutoff(ctx context.Context, key model.CutoffKey) (*model.Cutoff, error)
	UpsertCutoff(ctx context.Context, cutoff *model.Cutoff) (bool, error)
	ListCutoffs(ctx context.Context, filter CutoffFilter) ([]model.Cutoff, error)
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error

	// Lifecycle
	ResetStaging(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q (want postgres or sqlite)", cfg.Driver)
	}
}
