package processor

import (
	"context"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/internal/generation"
	"github.com/energyexe/harmonizer/internal/rawdata"
)

// MemoryStore is an in-memory Store used by tests. Raw rows are served
// from a slice; persisted records land in Persisted keyed by scope, and
// a savepoint failure discards only that source's writes, mirroring the
// database behavior.
type MemoryStore struct {
	Raw        []contracts.RawRecord
	Persisted  map[string][]contracts.HourlyRecord
	FetchErr   map[string]error // keyed by source
	ReplaceErr map[string]error // keyed by source
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Persisted:  make(map[string][]contracts.HourlyRecord),
		FetchErr:   make(map[string]error),
		ReplaceErr: make(map[string]error),
	}
}

func scopeKey(scope generation.Scope) string {
	return scope.Source + "/" + scope.Window.Start.Format("2006-01-02")
}

func (m *MemoryStore) FetchRaw(_ context.Context, q rawdata.Query) ([]contracts.RawRecord, error) {
	if err := m.FetchErr[q.Source]; err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(q.ExcludeSourceTypes))
	for _, t := range q.ExcludeSourceTypes {
		excluded[t] = true
	}
	included := make(map[string]bool, len(q.IncludeSourceTypes))
	for _, t := range q.IncludeSourceTypes {
		included[t] = true
	}

	var out []contracts.RawRecord
	for _, r := range m.Raw {
		if r.Source != q.Source || r.PeriodStart.Before(q.Start) || !r.PeriodStart.Before(q.End) {
			continue
		}
		if excluded[r.SourceType] {
			continue
		}
		if len(included) > 0 && !included[r.SourceType] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) Replace(_ context.Context, scope generation.Scope, records []contracts.HourlyRecord) (int64, int64, error) {
	if err := m.ReplaceErr[scope.Source]; err != nil {
		return 0, 0, err
	}
	key := scopeKey(scope)
	deleted := int64(len(m.Persisted[key]))
	m.Persisted[key] = append([]contracts.HourlyRecord(nil), records...)
	return deleted, int64(len(records)), nil
}

func (m *MemoryStore) WithSavepoint(ctx context.Context, fn func(Store) error) error {
	shadow := &MemoryStore{
		Raw:        m.Raw,
		Persisted:  make(map[string][]contracts.HourlyRecord, len(m.Persisted)),
		FetchErr:   m.FetchErr,
		ReplaceErr: m.ReplaceErr,
	}
	for k, v := range m.Persisted {
		shadow.Persisted[k] = v
	}
	if err := fn(shadow); err != nil {
		return err
	}
	m.Persisted = shadow.Persisted
	return nil
}
