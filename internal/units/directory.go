package units

import (
	"fmt"
	"sort"
	"time"

	"github.com/energyexe/harmonizer/internal/contracts"
)

// Directory is a temporally-aware catalog of generation units, keyed by
// source:code. It is built once per run (or once per parallel worker)
// and immutable after construction; lookups resolve the correct
// equipment phase for a given date.
type Directory struct {
	byKey map[string][]*contracts.GenerationUnit
	count int
}

// NewDirectory builds a directory from dimension rows. Units sharing a
// (source, code) key are kept as an ordered phase list, ascending by
// start date, so temporal containment picks the right phase.
func NewDirectory(units []contracts.GenerationUnit) *Directory {
	byKey := make(map[string][]*contracts.GenerationUnit, len(units))

	for i := range units {
		u := &units[i]
		k := key(u.Source, u.Code)
		byKey[k] = append(byKey[k], u)
	}

	for _, phases := range byKey {
		sort.SliceStable(phases, func(i, j int) bool {
			return phaseStart(phases[i]).Before(phaseStart(phases[j]))
		})
	}

	return &Directory{byKey: byKey, count: len(units)}
}

// OperationalUnit resolves the unit operational at the given date, or
// nil when no phase's validity window contains it. Callers must treat a
// nil result as a data-quality warning, not an error: the record is
// still persisted with a null unit link.
func (d *Directory) OperationalUnit(source, code string, at time.Time) *contracts.GenerationUnit {
	for _, u := range d.byKey[key(source, code)] {
		if u.OperationalAt(at) {
			return u
		}
	}
	return nil
}

// Len returns the number of units loaded.
func (d *Directory) Len() int {
	return d.count
}

// Keys returns the number of distinct source:code keys.
func (d *Directory) Keys() int {
	return len(d.byKey)
}

func key(source, code string) string {
	return fmt.Sprintf("%s:%s", source, code)
}

// phaseStart orders phases; units without any start sort first so a
// boundless phase only wins when no dated phase contains the date.
func phaseStart(u *contracts.GenerationUnit) time.Time {
	if u.StartDate != nil {
		return *u.StartDate
	}
	if u.FirstPowerDate != nil {
		return *u.FirstPowerDate
	}
	return time.Time{}
}
