package model

import "time"

// RawCutoff is one input row exactly as extracted from the source file,
// before any cleaning. Immutable once written.
type RawCutoff struct {
	ID          int64             `json:"id"`
	SessionID   string            `json:"session_id"`
	RowNumber   int               `json:"row_number"`
	Payload     map[string]string `json:"payload"`
	Rank        string            `json:"rank,omitempty"`
	Quota       string            `json:"quota,omitempty"`
	CollegeText string            `json:"college_text"`
	CourseText  string            `json:"course_text"`
	Category    string            `json:"category,omitempty"`
	Round       string            `json:"round,omitempty"`
	Year        int               `json:"year,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// RecordStatus is the staging state machine for a processed record:
// pending -> verified -> migrated, or pending -> rejected.
type RecordStatus string

const (
	RecordPending  RecordStatus = "pending"
	RecordVerified RecordStatus = "verified"
	RecordRejected RecordStatus = "rejected"
	RecordMigrated RecordStatus = "migrated"
)

// Confidence points awarded per resolved entity. A record with both
// college and program resolved scores 100; one of each 50; neither 0.
const ConfidencePerEntity = 50

// ProcessedCutoff is a cleaned, entity-resolved staging record. One raw
// row yields one ProcessedCutoff per parsed (category, rank) pair.
type ProcessedCutoff struct {
	ID             int64        `json:"id"`
	RawID          int64        `json:"raw_id"`
	SessionID      string       `json:"session_id"`
	CollegeID      *int64       `json:"college_id,omitempty"`
	ProgramID      *int64       `json:"program_id,omitempty"`
	CollegeText    string       `json:"college_text"`
	ProgramText    string       `json:"program_text"`
	City           string       `json:"city,omitempty"`
	State          string       `json:"state,omitempty"`
	Year           int          `json:"year"`
	Round          string       `json:"round"`
	Authority      string       `json:"authority"`
	Quota          string       `json:"quota"`
	Category       string       `json:"category"`
	OpeningRank    int          `json:"opening_rank"`
	ClosingRank    int          `json:"closing_rank"`
	SeatsAvailable int          `json:"seats_available"`
	SeatsFilled    int          `json:"seats_filled"`
	Confidence     int          `json:"confidence_score"`
	Status         RecordStatus `json:"status"`
	ManualVerified bool         `json:"manual_verified"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Resolved reports whether both entities were matched.
func (p *ProcessedCutoff) Resolved() bool {
	return p.CollegeID != nil && p.ProgramID != nil
}

// ManualCorrection is one human edit made during verification.
// Append-only audit trail.
type ManualCorrection struct {
	ID             int64     `json:"id"`
	ProcessedID    int64     `json:"processed_id"`
	Field          string    `json:"field"`
	OriginalValue  string    `json:"original_value"`
	CorrectedValue string    `json:"corrected_value"`
	CorrectionType string    `json:"correction_type"`
	CreatedAt      time.Time `json:"created_at"`
}
