package adapters

import (
	"fmt"
	"sort"
	"time"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// Source resolution labels stored on canonical rows.
const (
	ResolutionPT15M = "PT15M"
	ResolutionPT30M = "PT30M"
	ResolutionPT60M = "PT60M"
	ResolutionP1M   = "P1M"
)

// FetchSpec tells the processor how to query raw data for an adapter.
// PadStart widens the fetch (and delete) window backwards: ELEXON
// settlement periods during British Summer Time begin before UTC
// midnight, so the first hour of a UK day lives in the previous UTC day.
type FetchSpec struct {
	PadStart           time.Duration
	IncludeSourceTypes []string
	ExcludeSourceTypes []string
}

// Adapter turns raw rows for one source into hourly candidates. Transform
// is pure: same rows in, same candidates out, no I/O. Candidates outside
// the supplied day window must be filtered out by the adapter itself,
// since DST-safe hour math can move a row across the day boundary.
type Adapter interface {
	Source() string
	Resolution() string
	FetchSpec() FetchSpec
	Transform(win contracts.DayWindow, rows []contracts.RawRecord) []contracts.HourlyCandidate
}

// Registry holds one adapter per source.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds the full adapter set.
func NewRegistry(log *logger.Logger) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range []Adapter{
		NewENTSOE(),
		NewELEXON(log),
		NewTAIPOWER(log),
		NewNVE(),
		NewENERGISTYRELSEN(),
	} {
		r.adapters[a.Source()] = a
	}
	return r
}

// Lookup returns the adapter for a source.
func (r *Registry) Lookup(source string) (Adapter, error) {
	a, ok := r.adapters[source]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source %q", source)
	}
	return a, nil
}

// hourKey groups candidates during transformation.
type hourKey struct {
	hour       time.Time
	identifier string
}

// sortCandidates fixes the output order so downstream persistence and
// logging are deterministic across runs.
func sortCandidates(cands []contracts.HourlyCandidate) []contracts.HourlyCandidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Identifier != cands[j].Identifier {
			return cands[i].Identifier < cands[j].Identifier
		}
		return cands[i].Hour.Before(cands[j].Hour)
	})
	return cands
}
