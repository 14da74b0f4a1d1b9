package processor

import (
	"context"
	"errors"
	"time"

	"github.com/energyexe/harmonizer/internal/adapters"
	"github.com/energyexe/harmonizer/internal/assemble"
	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/internal/generation"
	"github.com/energyexe/harmonizer/internal/rawdata"
	"github.com/energyexe/harmonizer/internal/units"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// Per-source processing statuses recorded in run logs.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Pipeline states a source passes through. On failure State keeps the
// stage that was in flight, so failure logs show where work stopped.
const (
	StatePending      = "pending"
	StateFetching     = "fetching"
	StateTransforming = "transforming"
	StatePersisting   = "persisting"
	StateDone         = "done"
)

// SourceResult is the outcome of processing one source for one day.
type SourceResult struct {
	Source        string
	Status        string
	State         string
	RawRecords    int
	HourlyRecords int
	Deleted       int64
	Stats         assemble.Stats
	Duration      time.Duration
	Err           error
}

// DayResult aggregates per-source outcomes for one UTC day.
type DayResult struct {
	Date    time.Time
	Sources []SourceResult
}

// RawRecords sums raw rows seen across sources.
func (d *DayResult) RawRecords() int {
	n := 0
	for _, s := range d.Sources {
		n += s.RawRecords
	}
	return n
}

// HourlyRecords sums persisted rows across sources.
func (d *DayResult) HourlyRecords() int {
	n := 0
	for _, s := range d.Sources {
		n += s.HourlyRecords
	}
	return n
}

// Failed reports whether any source failed.
func (d *DayResult) Failed() bool {
	for _, s := range d.Sources {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// DayProcessor runs the fetch → transform → assemble → persist pipeline
// for one day. Each source executes inside its own savepoint so a bad
// source never poisons the others.
type DayProcessor struct {
	registry *adapters.Registry
	log      *logger.Logger
}

// New creates a day processor.
func New(registry *adapters.Registry, log *logger.Logger) *DayProcessor {
	return &DayProcessor{registry: registry, log: log}
}

// ProcessDay processes the given sources for one UTC day against an open
// store. The caller owns the enclosing transaction (commit, rollback for
// dry runs). Fetch and transform failures are contained per source; a
// PersistError or context cancellation aborts the day so the caller can
// roll the whole transaction back.
func (p *DayProcessor) ProcessDay(ctx context.Context, store Store, dir *units.Directory, date time.Time, sources []string) (*DayResult, error) {
	win := contracts.DayWindowFor(date)
	asm := assemble.New(dir, p.log)
	result := &DayResult{Date: win.Start}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res := p.processSource(ctx, store, asm, win, source)

		logCtx := p.log.WithFields(map[string]interface{}{
			"date":           win.Start.Format("2006-01-02"),
			"source":         source,
			"raw_records":    res.RawRecords,
			"hourly_records": res.HourlyRecords,
			"duration":       res.Duration.String(),
		})
		switch res.Status {
		case StatusFailed:
			logCtx.WithField("state", res.State).WithError(res.Err).Error("Source processing failed")
		case StatusSkipped:
			logCtx.Info("Source skipped")
		default:
			logCtx.Info("Source processed")
		}
		result.Sources = append(result.Sources, res)

		var persistErr *PersistError
		if errors.As(res.Err, &persistErr) {
			return result, res.Err
		}
	}
	return result, nil
}

func (p *DayProcessor) processSource(ctx context.Context, store Store, asm *assemble.Assembler, win contracts.DayWindow, source string) SourceResult {
	started := time.Now()
	res := SourceResult{Source: source, Status: StatusProcessed, State: StatePending}

	adapter, err := p.registry.Lookup(source)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		res.Duration = time.Since(started)
		return res
	}

	// Monthly-resolution sources cannot be spread across hours; the
	// daily engine leaves their stored data untouched.
	if adapter.Resolution() == adapters.ResolutionP1M {
		p.log.WithFields(map[string]interface{}{
			"source": source,
			"date":   win.Start.Format("2006-01-02"),
		}).Warn("Source publishes monthly totals; skipped in daily processing")
		res.Status = StatusSkipped
		res.Duration = time.Since(started)
		return res
	}

	err = store.WithSavepoint(ctx, func(s Store) error {
		res.State = StateFetching
		spec := adapter.FetchSpec()
		rows, err := s.FetchRaw(ctx, rawdata.Query{
			Source:             source,
			Start:              win.Start.Add(-spec.PadStart),
			End:                win.End,
			IncludeSourceTypes: spec.IncludeSourceTypes,
			ExcludeSourceTypes: spec.ExcludeSourceTypes,
		})
		if err != nil {
			return &FetchError{Source: source, Err: err}
		}
		res.RawRecords = len(rows)

		res.State = StateTransforming
		candidates := adapter.Transform(win, rows)
		records, stats := asm.Assemble(source, adapter.Resolution(), candidates)
		res.Stats = stats

		res.State = StatePersisting
		deleted, inserted, err := s.Replace(ctx, generation.Scope{Source: source, Window: win}, records)
		if err != nil {
			return &PersistError{Source: source, Err: err}
		}
		res.Deleted = deleted
		res.HourlyRecords = int(inserted)
		res.State = StateDone
		return nil
	})
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		res.RawRecords, res.HourlyRecords, res.Deleted = 0, 0, 0
	}
	res.Duration = time.Since(started)
	return res
}
