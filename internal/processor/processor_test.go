package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energyexe/harmonizer/internal/adapters"
	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/internal/units"
	"github.com/energyexe/harmonizer/pkg/logger"
)

var procDay = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

func testDirectory() *units.Directory {
	capacity := 100.0
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	return units.NewDirectory([]contracts.GenerationUnit{
		{ID: 1, Source: contracts.SourceENTSOE, Code: "48W_A", CapacityMW: &capacity, StartDate: &start},
		{ID: 2, Source: contracts.SourceNVE, Code: "nve-1", CapacityMW: &capacity, StartDate: &start},
	})
}

func entsoeRaw(id int64, identifier string, offset time.Duration, value float64) contracts.RawRecord {
	return contracts.RawRecord{
		ID:          id,
		Source:      contracts.SourceENTSOE,
		SourceType:  "api",
		Identifier:  identifier,
		PeriodStart: procDay.Add(offset),
		Value:       &value,
	}
}

func TestProcessDay_PersistsPerSource(t *testing.T) {
	store := NewMemoryStore()
	store.Raw = []contracts.RawRecord{
		entsoeRaw(1, "48W_A", 6*time.Hour, 10),
		entsoeRaw(2, "48W_A", 6*time.Hour+30*time.Minute, 14),
		{
			ID: 3, Source: contracts.SourceNVE, SourceType: "meter",
			Identifier: "nve-1", PeriodStart: procDay.Add(8 * time.Hour),
			Value: ptr(5.0),
		},
	}

	p := New(adapters.NewRegistry(logger.Nop()), logger.Nop())
	result, err := p.ProcessDay(context.Background(), store, testDirectory(), procDay,
		[]string{contracts.SourceENTSOE, contracts.SourceNVE})
	require.NoError(t, err)

	assert.False(t, result.Failed())
	assert.Equal(t, 3, result.RawRecords())
	assert.Equal(t, 2, result.HourlyRecords())
	for _, s := range result.Sources {
		assert.Equal(t, StateDone, s.State)
	}

	entsoeRows := store.Persisted[contracts.SourceENTSOE+"/2024-03-10"]
	require.Len(t, entsoeRows, 1)
	assert.Equal(t, "12", entsoeRows[0].GenerationMWh.String())
	assert.Equal(t, adapters.ResolutionPT30M, entsoeRows[0].SourceResolution)

	nveRows := store.Persisted[contracts.SourceNVE+"/2024-03-10"]
	require.Len(t, nveRows, 1)
	assert.Equal(t, "5", nveRows[0].GenerationMWh.String())
}

func TestProcessDay_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	store.Raw = []contracts.RawRecord{entsoeRaw(1, "48W_A", 6*time.Hour, 10)}

	p := New(adapters.NewRegistry(logger.Nop()), logger.Nop())

	first, err := p.ProcessDay(context.Background(), store, testDirectory(), procDay, []string{contracts.SourceENTSOE})
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Sources[0].Deleted)

	second, err := p.ProcessDay(context.Background(), store, testDirectory(), procDay, []string{contracts.SourceENTSOE})
	require.NoError(t, err)

	// Second run replaces the first run's row instead of duplicating it.
	assert.Equal(t, int64(1), second.Sources[0].Deleted)
	assert.Len(t, store.Persisted[contracts.SourceENTSOE+"/2024-03-10"], 1)
}

func TestProcessDay_FetchFailureIsolated(t *testing.T) {
	store := NewMemoryStore()
	store.Raw = []contracts.RawRecord{
		entsoeRaw(1, "48W_A", 6*time.Hour, 10),
		{
			ID: 2, Source: contracts.SourceNVE, SourceType: "meter",
			Identifier: "nve-1", PeriodStart: procDay.Add(8 * time.Hour),
			Value: ptr(5.0),
		},
	}
	store.FetchErr[contracts.SourceENTSOE] = errors.New("connection reset")

	p := New(adapters.NewRegistry(logger.Nop()), logger.Nop())
	result, err := p.ProcessDay(context.Background(), store, testDirectory(), procDay,
		[]string{contracts.SourceENTSOE, contracts.SourceNVE})
	require.NoError(t, err)

	require.Len(t, result.Sources, 2)
	assert.True(t, result.Failed())
	assert.Equal(t, StatusFailed, result.Sources[0].Status)

	var fetchErr *FetchError
	require.ErrorAs(t, result.Sources[0].Err, &fetchErr)
	assert.Equal(t, contracts.SourceENTSOE, fetchErr.Source)
	assert.Equal(t, StateFetching, result.Sources[0].State)

	// The healthy source still landed.
	assert.Equal(t, StatusProcessed, result.Sources[1].Status)
	assert.Len(t, store.Persisted[contracts.SourceNVE+"/2024-03-10"], 1)
	assert.Empty(t, store.Persisted[contracts.SourceENTSOE+"/2024-03-10"])
}

func TestProcessDay_PersistFailureAbortsDay(t *testing.T) {
	store := NewMemoryStore()
	store.Raw = []contracts.RawRecord{
		entsoeRaw(1, "48W_A", 6*time.Hour, 10),
	}
	store.ReplaceErr[contracts.SourceENTSOE] = errors.New("deadlock detected")

	p := New(adapters.NewRegistry(logger.Nop()), logger.Nop())
	result, err := p.ProcessDay(context.Background(), store, testDirectory(), procDay,
		[]string{contracts.SourceENTSOE, contracts.SourceNVE})

	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, contracts.SourceENTSOE, persistErr.Source)
	assert.Equal(t, StatePersisting, result.Sources[0].State)

	// Processing stopped at the failing source; the caller rolls back.
	require.Len(t, result.Sources, 1)
	assert.True(t, result.Failed())
	assert.Empty(t, store.Persisted[contracts.SourceENTSOE+"/2024-03-10"])
}

func TestProcessDay_MonthlySourceSkipped(t *testing.T) {
	store := NewMemoryStore()
	store.Raw = []contracts.RawRecord{{
		ID: 1, Source: contracts.SourceENERGISTYRELSEN, SourceType: "monthly",
		Identifier: "dk-1", PeriodStart: procDay, Value: ptr(900.0),
	}}

	p := New(adapters.NewRegistry(logger.Nop()), logger.Nop())
	result, err := p.ProcessDay(context.Background(), store, testDirectory(), procDay,
		[]string{contracts.SourceENERGISTYRELSEN})
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, StatusSkipped, result.Sources[0].Status)
	assert.Equal(t, StatePending, result.Sources[0].State)
	assert.Empty(t, store.Persisted)
	assert.False(t, result.Failed())
}

func TestProcessDay_EmptyDayClearsScope(t *testing.T) {
	store := NewMemoryStore()
	// A previous run left a row; the raw data has since been retracted.
	store.Persisted[contracts.SourceENTSOE+"/2024-03-10"] = []contracts.HourlyRecord{{Source: contracts.SourceENTSOE}}

	p := New(adapters.NewRegistry(logger.Nop()), logger.Nop())
	result, err := p.ProcessDay(context.Background(), store, testDirectory(), procDay, []string{contracts.SourceENTSOE})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Sources[0].Deleted)
	assert.Empty(t, store.Persisted[contracts.SourceENTSOE+"/2024-03-10"])
}

func TestProcessDay_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(adapters.NewRegistry(logger.Nop()), logger.Nop())
	_, err := p.ProcessDay(ctx, NewMemoryStore(), testDirectory(), procDay, []string{contracts.SourceENTSOE})
	assert.ErrorIs(t, err, context.Canceled)
}

func ptr(f float64) *float64 { return &f }
