// Package model defines the shared data structures for the cutoff
// ingestion pipeline: import sessions, staged records, correction rules,
// and the canonical college/program/cutoff entities.
package model

import "time"

// SessionStatus tracks the lifecycle of an import session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// ImportSession records one uploaded cutoff file moving through the
// pipeline. Sessions are never deleted, only marked completed or failed.
type ImportSession struct {
	ID          string        `json:"id"`
	Filename    string        `json:"filename"`
	FileType    string        `json:"file_type,omitempty"`
	Authority   string        `json:"authority,omitempty"`
	RawImported int           `json:"raw_imported"`
	Processed   int           `json:"processed"`
	Verified    int           `json:"verified"`
	Migrated    int           `json:"migrated"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// SessionCounters holds the counter columns updated as rows move through
// the raw-import and processing phases.
type SessionCounters struct {
	RawImported int
	Processed   int
	Verified    int
	Migrated    int
}
