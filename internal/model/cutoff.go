package model

import "time"

// College is a canonical college row in the authoritative store.
type College struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	Type           string    `json:"type,omitempty"`
	City           string    `json:"city,omitempty"`
	State          string    `json:"state,omitempty"`
	Status         string    `json:"status,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Program is a canonical program offered by a college.
type Program struct {
	ID             int64     `json:"id"`
	CollegeID      int64     `json:"college_id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	Type           string    `json:"type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Cutoff is the canonical migration target. At most one row exists per
// (college_id, program_id, year, round, authority, quota, category);
// repeated migrations update ranks in place.
type Cutoff struct {
	ID             int64     `json:"id"`
	CollegeID      int64     `json:"college_id"`
	ProgramID      int64     `json:"program_id"`
	Year           int       `json:"year"`
	Round          string    `json:"round"`
	Authority      string    `json:"authority"`
	Quota          string    `json:"quota"`
	Category       string    `json:"category"`
	OpeningRank    int       `json:"opening_rank"`
	ClosingRank    int       `json:"closing_rank"`
	SeatsAvailable int       `json:"seats_available"`
	SeatsFilled    int       `json:"seats_filled"`
	Status         string    `json:"status"`
	SourceFile     string    `json:"source_file,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CutoffKey is the natural key used for de-duplicated upserts.
type CutoffKey struct {
	CollegeID int64
	ProgramID int64
	Year      int
	Round     string
	Authority string
	Quota     string
	Category  string
}

// Key returns the natural key of a cutoff row.
func (c *Cutoff) Key() CutoffKey {
	return CutoffKey{
		CollegeID: c.CollegeID,
		ProgramID: c.ProgramID,
		Year:      c.Year,
		Round:     c.Round,
		Authority: c.Authority,
		Quota:     c.Quota,
		Category:  c.Category,
	}
}

// AuditEntry captures a before/after payload for every canonical-store
// create or update performed by the migration engine.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id"`
	Action    string    `json:"action"`
	Before    []byte    `json:"before,omitempty"`
	After     []byte    `json:"after,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
