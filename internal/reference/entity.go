// Package reference loads canonical colleges, programs, and vocabularies
// into an immutable in-memory snapshot used by the entity matcher.
package reference

// EntityType distinguishes the two matchable entity kinds.
type EntityType string

const (
	TypeCollege EntityType = "college"
	TypeProgram EntityType = "program"
)

// Entity is one canonical reference record plus its generated lookup
// variations. Variations exist only for matching; they are never persisted.
type Entity struct {
	ID         int64
	Name       string
	Type       string // college subtype (MEDICAL, DENTAL) or program level
	City       string
	State      string
	Variations []string
}
