package reference

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/neetlogiq/cutoff-cli/internal/config"
	"github.com/neetlogiq/cutoff-cli/internal/fetcher"
	"github.com/neetlogiq/cutoff-cli/internal/model"
)

// CanonicalSource reads already-migrated canonical entities from the
// store for inclusion in the snapshot.
type CanonicalSource interface {
	ListColleges(ctx context.Context) ([]model.College, error)
	ListPrograms(ctx context.Context) ([]model.Program, error)
}

// Loader builds reference snapshots from seed spreadsheets and,
// optionally, the canonical store. It never mutates canonical records.
type Loader struct {
	cfg   config.ReferenceConfig
	store CanonicalSource
}

// NewLoader creates a loader. store may be nil when only seed files are
// configured.
func NewLoader(cfg config.ReferenceConfig, store CanonicalSource) *Loader {
	return &Loader{cfg: cfg, store: store}
}

// Load reads all configured sources and builds a fresh immutable
// snapshot. Calling it again performs an explicit reload with a new
// version; existing snapshots keep serving readers untouched.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	log := zap.L().With(zap.String("component", "reference.loader"))

	var colleges, programs []Entity
	nextID := int64(1)

	if l.store != nil && l.cfg.IncludeStore {
		storeColleges, err := l.store.ListColleges(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "reference: list canonical colleges")
		}
		for _, c := range storeColleges {
			colleges = append(colleges, Entity{
				ID: c.ID, Name: c.Name, Type: c.Type, City: c.City, State: c.State,
			})
			if c.ID >= nextID {
				nextID = c.ID + 1
			}
		}

		storePrograms, err := l.store.ListPrograms(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "reference: list canonical programs")
		}
		for _, p := range storePrograms {
			programs = append(programs, Entity{ID: p.ID, Name: p.Name, Type: p.Type})
		}
	}

	if l.cfg.CollegesPath != "" {
		seeded, err := loadCollegeSeed(l.cfg.CollegesPath, &nextID, colleges)
		if err != nil {
			return nil, err
		}
		colleges = append(colleges, seeded...)
	}

	if l.cfg.ProgramsPath != "" {
		seeded, err := loadProgramSeed(l.cfg.ProgramsPath, &nextID, programs)
		if err != nil {
			return nil, err
		}
		programs = append(programs, seeded...)
	}

	snap := Build(colleges, programs, DefaultVocab())
	log.Info("reference snapshot loaded",
		zap.Int64("version", snap.Version),
		zap.Int("colleges", len(snap.Entities(TypeCollege))),
		zap.Int("programs", len(snap.Entities(TypeProgram))),
	)
	return snap, nil
}

// loadCollegeSeed reads a college seed spreadsheet. Required column:
// name. Optional: city, state, type. Rows duplicating an already-loaded
// normalized name are skipped.
func loadCollegeSeed(path string, nextID *int64, existing []Entity) ([]Entity, error) {
	rows, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: read college seed %s", path)
	}

	idx := rows.Index()
	nameCol, ok := idx["name"]
	if !ok {
		return nil, eris.Errorf("reference: college seed %s has no name column", path)
	}

	known := knownKeys(existing)
	var out []Entity
	for _, row := range rows.Rows {
		name := row[nameCol]
		if name == "" {
			continue
		}
		key := NormalizeKey(name)
		if known[key] {
			continue
		}
		known[key] = true

		e := Entity{ID: *nextID, Name: name}
		*nextID++
		if i, ok := idx["city"]; ok {
			e.City = NormalizeKey(row[i])
		}
		if i, ok := idx["state"]; ok {
			e.State = NormalizeKey(row[i])
		}
		if i, ok := idx["type"]; ok {
			e.Type = NormalizeKey(row[i])
		}
		out = append(out, e)
	}
	return out, nil
}

// loadProgramSeed reads a program seed spreadsheet. Required column:
// name. Optional: type.
func loadProgramSeed(path string, nextID *int64, existing []Entity) ([]Entity, error) {
	rows, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: read program seed %s", path)
	}

	idx := rows.Index()
	nameCol, ok := idx["name"]
	if !ok {
		return nil, eris.Errorf("reference: program seed %s has no name column", path)
	}

	known := knownKeys(existing)
	var out []Entity
	for _, row := range rows.Rows {
		name := row[nameCol]
		if name == "" {
			continue
		}
		key := NormalizeKey(name)
		if known[key] {
			continue
		}
		known[key] = true

		e := Entity{ID: *nextID, Name: name}
		*nextID++
		if i, ok := idx["type"]; ok {
			e.Type = NormalizeKey(row[i])
		}
		out = append(out, e)
	}
	return out, nil
}

func knownKeys(entities []Entity) map[string]bool {
	known := make(map[string]bool, len(entities))
	for _, e := range entities {
		known[NormalizeKey(e.Name)] = true
	}
	return known
}
