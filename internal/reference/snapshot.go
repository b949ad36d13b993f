package reference

import (
	"sync/atomic"
	"time"
)

var snapshotVersion atomic.Int64

// Vocab holds the closed quota/category/state vocabularies loaded
// alongside the entity lists.
type Vocab struct {
	Quotas     []string
	Categories []string
	States     []string
}

// DefaultVocab returns the built-in seat-allocation vocabularies used
// when no vocabulary seed is provided.
func DefaultVocab() Vocab {
	return Vocab{
		Quotas:     []string{"state", "management", "all_india", "central", "nri", "deemed"},
		Categories: []string{"GM", "SC", "ST", "OBC", "EWS", "NRI", "PH", "PWD", "GMP", "MU", "2AG", "2BG", "3AG", "3BG", "CAT1"},
	}
}

// Snapshot is an immutable view of the reference data. It is built once
// at pipeline start (or on explicit reload) and read concurrently by the
// matcher; nothing mutates it after Build returns.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Vocab    Vocab

	colleges []Entity
	programs []Entity

	verbatim map[EntityType]map[string]int
	normal   map[EntityType]map[string]int
}

// Build assembles a snapshot from entity lists, generating variations for
// any entity that has none, and indexing verbatim and normalized names.
// Entity order is preserved so first-hit matching stays deterministic.
func Build(colleges, programs []Entity, vocab Vocab) *Snapshot {
	s := &Snapshot{
		Version:  snapshotVersion.Add(1),
		LoadedAt: time.Now().UTC(),
		Vocab:    vocab,
		verbatim: map[EntityType]map[string]int{TypeCollege: {}, TypeProgram: {}},
		normal:   map[EntityType]map[string]int{TypeCollege: {}, TypeProgram: {}},
	}

	s.colleges = index(colleges, s.verbatim[TypeCollege], s.normal[TypeCollege])
	s.programs = index(programs, s.verbatim[TypeProgram], s.normal[TypeProgram])

	stateSet := map[string]bool{}
	for _, st := range vocab.States {
		stateSet[st] = true
	}
	for _, c := range s.colleges {
		if c.State != "" && !stateSet[c.State] {
			stateSet[c.State] = true
			s.Vocab.States = append(s.Vocab.States, c.State)
		}
	}

	return s
}

func index(entities []Entity, verbatim, normal map[string]int) []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)

	for i := range out {
		if len(out[i].Variations) == 0 {
			out[i].Variations = Variations(out[i].Name)
		}

		if _, taken := verbatim[out[i].Name]; !taken {
			verbatim[out[i].Name] = i
		}
		for _, v := range out[i].Variations {
			if _, taken := normal[v]; !taken {
				normal[v] = i
			}
		}
		key := NormalizeKey(out[i].Name)
		if _, taken := normal[key]; !taken {
			normal[key] = i
		}
	}
	return out
}

// Entities returns the entity list for a type, in load order.
func (s *Snapshot) Entities(t EntityType) []Entity {
	if t == TypeCollege {
		return s.colleges
	}
	return s.programs
}

// ByVerbatim looks an entity up by its exact canonical name.
func (s *Snapshot) ByVerbatim(t EntityType, name string) *Entity {
	if i, ok := s.verbatim[t][name]; ok {
		return s.entityAt(t, i)
	}
	return nil
}

// ByNormalized looks an entity up by normalized name or any variation.
func (s *Snapshot) ByNormalized(t EntityType, key string) *Entity {
	if i, ok := s.normal[t][key]; ok {
		return s.entityAt(t, i)
	}
	return nil
}

func (s *Snapshot) entityAt(t EntityType, i int) *Entity {
	ents := s.Entities(t)
	if i < 0 || i >= len(ents) {
		return nil
	}
	e := ents[i]
	return &e
}
