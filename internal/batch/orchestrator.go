package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/internal/processor"
	"github.com/energyexe/harmonizer/internal/units"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// StoreProvider opens one transaction per processing period. With dryRun
// the transaction is rolled back after fn returns, so the whole pipeline
// runs against real data without persisting anything.
type StoreProvider interface {
	RunInTransaction(ctx context.Context, dryRun bool, fn func(processor.Store) error) error
}

// DirectoryLoader loads the generation unit directory. The orchestrator
// reloads it per run (daily mode) or per month (monthly mode) so long
// backfills pick up dimension changes.
type DirectoryLoader interface {
	LoadDirectory(ctx context.Context) (*units.Directory, error)
}

// Options configures one batch run.
type Options struct {
	Start   time.Time
	End     time.Time   // inclusive
	Dates   []time.Time // explicit day list (retry mode); overrides Start/End
	Source  string      // empty means all daily sources
	DryRun  bool
	Resume  bool
	Monthly bool
	Pace    time.Duration // minimum spacing between periods
}

func (o Options) sources() []string {
	if o.Source != "" {
		return []string{o.Source}
	}
	return contracts.DailySources()
}

func (o Options) sourceLabel() string {
	if o.Source == "" {
		return "ALL"
	}
	return o.Source
}

// Orchestrator drives day-by-day (or month-by-month) processing over a
// date range with checkpointing, run logging and pacing.
type Orchestrator struct {
	provider    StoreProvider
	dirs        DirectoryLoader
	proc        *processor.DayProcessor
	checkpoints CheckpointStore
	sink        RunLogSink
	log         *logger.Logger
}

// NewOrchestrator wires a batch orchestrator.
func NewOrchestrator(provider StoreProvider, dirs DirectoryLoader, proc *processor.DayProcessor, checkpoints CheckpointStore, sink RunLogSink, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		provider:    provider,
		dirs:        dirs,
		proc:        proc,
		checkpoints: checkpoints,
		sink:        sink,
		log:         log,
	}
}

// Run processes the configured range. The returned run log is always
// written to the sink, including on interruption. The error return is
// reserved for infrastructure problems and cancellation; per-day
// failures are reported through the run log.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunLog, error) {
	days, err := o.planDays(ctx, opts)
	if err != nil {
		return nil, err
	}

	run := &RunLog{Summary: Summary{
		StartTime: time.Now().UTC().Format(time.RFC3339),
		TotalDays: len(days),
		Source:    opts.sourceLabel(),
		DryRun:    opts.DryRun,
	}}

	var runErr error
	if opts.Monthly {
		runErr = o.runMonthly(ctx, opts, days, run)
	} else {
		runErr = o.runDaily(ctx, opts, days, run)
	}

	run.Summary.EndTime = time.Now().UTC().Format(time.RFC3339)
	run.Summary.SkippedDays = run.Summary.TotalDays - run.Summary.ProcessedDays - run.Summary.FailedDays
	if err := o.sink.Write(run); err != nil {
		o.log.WithError(err).Error("Failed to write run log")
	}

	o.log.WithFields(map[string]interface{}{
		"total_days":     run.Summary.TotalDays,
		"processed_days": run.Summary.ProcessedDays,
		"failed_days":    run.Summary.FailedDays,
		"raw_records":    run.Summary.TotalRawRecords,
		"hourly_records": run.Summary.TotalHourlyRecords,
		"dry_run":        opts.DryRun,
	}).Info("Batch run finished")

	return run, runErr
}

// planDays resolves the day list, applying checkpoint resume.
func (o *Orchestrator) planDays(ctx context.Context, opts Options) ([]time.Time, error) {
	if len(opts.Dates) > 0 {
		days := make([]time.Time, len(opts.Dates))
		for i, d := range opts.Dates {
			days[i] = contracts.DayWindowFor(d).Start
		}
		return days, nil
	}

	start := contracts.DayWindowFor(opts.Start).Start
	end := contracts.DayWindowFor(opts.End).Start
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	if opts.Resume {
		cp, err := o.checkpoints.Load(ctx)
		if err != nil {
			o.log.WithError(err).Warn("Could not load checkpoint, starting from range start")
		} else if cp != nil {
			last, err := cp.LastDate()
			if err != nil {
				o.log.WithError(err).Warn("Malformed checkpoint date, starting from range start")
			} else if !last.Before(start) {
				start = last.AddDate(0, 0, 1)
				o.log.WithField("resume_from", start.Format("2006-01-02")).Info("Resuming from checkpoint")
			}
		}
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

func newPacer(pace time.Duration) *rate.Limiter {
	if pace <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(pace), 1)
}

func (o *Orchestrator) runDaily(ctx context.Context, opts Options, days []time.Time, run *RunLog) error {
	if len(days) == 0 {
		return nil
	}

	dir, err := o.dirs.LoadDirectory(ctx)
	if err != nil {
		return fmt.Errorf("load unit directory: %w", err)
	}
	o.log.WithField("units", dir.Len()).Info("Loaded generation unit directory")

	pacer := newPacer(opts.Pace)
	started := time.Now()

	for i, day := range days {
		if ctx.Err() != nil {
			// Interrupted at a period boundary; every recorded day
			// is committed and checkpointed.
			o.log.Warn("Run interrupted, stopping at period boundary")
			return ctx.Err()
		}
		if err := pacer.Wait(ctx); err != nil {
			return err
		}

		dayStart := time.Now()
		result, err := o.processOneDay(ctx, dir, day, opts)
		if err != nil && ctx.Err() != nil {
			// Cancelled mid-day: the transaction rolled back, so the
			// day is neither recorded nor checkpointed.
			o.log.Warn("Run interrupted, stopping at period boundary")
			return ctx.Err()
		}
		o.recordDay(ctx, run, opts, day, result, err, time.Since(dayStart))
		o.logProgress(i+1, len(days), run, started)
	}
	return nil
}

// runMonthly processes whole months in single transactions: either every
// day of the month commits or none of them do.
func (o *Orchestrator) runMonthly(ctx context.Context, opts Options, days []time.Time, run *RunLog) error {
	if len(days) == 0 {
		return nil
	}

	months := groupByMonth(days)
	pacer := newPacer(opts.Pace)
	started := time.Now()
	done := 0

	for _, monthDays := range months {
		if ctx.Err() != nil {
			o.log.Warn("Run interrupted, stopping at period boundary")
			return ctx.Err()
		}
		if err := pacer.Wait(ctx); err != nil {
			return err
		}

		// Reload per month so long backfills see dimension changes.
		dir, err := o.dirs.LoadDirectory(ctx)
		if err != nil {
			return fmt.Errorf("load unit directory: %w", err)
		}

		monthStart := time.Now()
		results := make(map[string]*processor.DayResult, len(monthDays))

		txErr := o.provider.RunInTransaction(ctx, opts.DryRun, func(s processor.Store) error {
			for _, day := range monthDays {
				result, err := o.proc.ProcessDay(ctx, s, dir, day, opts.sources())
				results[day.Format("2006-01-02")] = result
				if err != nil {
					// Persist failures (and cancellation) void the
					// whole month; contained source failures stay in
					// the day's result for the run log.
					return fmt.Errorf("day %s: %w", day.Format("2006-01-02"), err)
				}
			}
			return nil
		})
		if txErr != nil && ctx.Err() != nil {
			o.log.Warn("Run interrupted, stopping at period boundary")
			return ctx.Err()
		}

		perDay := time.Since(monthStart) / time.Duration(len(monthDays))
		for _, day := range monthDays {
			o.recordDay(ctx, run, opts, day, results[day.Format("2006-01-02")], txErr, perDay)
		}
		done += len(monthDays)
		o.logProgress(done, len(days), run, started)
	}
	return nil
}

func (o *Orchestrator) processOneDay(ctx context.Context, dir *units.Directory, day time.Time, opts Options) (*processor.DayResult, error) {
	var result *processor.DayResult
	err := o.provider.RunInTransaction(ctx, opts.DryRun, func(s processor.Store) error {
		r, err := o.proc.ProcessDay(ctx, s, dir, day, opts.sources())
		result = r
		return err
	})
	return result, err
}

// recordDay folds one day's outcome into the run log and, on success,
// advances the checkpoint. The checkpoint moves past failed days too:
// they stay in the run log for --retry, and re-running a committed day
// is always safe.
func (o *Orchestrator) recordDay(ctx context.Context, run *RunLog, opts Options, day time.Time, result *processor.DayResult, err error, elapsed time.Duration) {
	entry := DayEntry{
		Date:                  day.Format("2006-01-02"),
		Source:                opts.sourceLabel(),
		ProcessingTimeSeconds: elapsed.Seconds(),
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
	}

	switch {
	case err != nil:
		entry.Status = DayStatusFailed
		entry.Error = err.Error()
	case result == nil:
		entry.Status = DayStatusFailed
		entry.Error = "no result produced"
	case result.Failed():
		entry.Status = DayStatusFailed
		entry.Error = joinSourceErrors(result)
		entry.RawRecords = result.RawRecords()
		entry.HourlyRecords = result.HourlyRecords()
	case allSkipped(result):
		entry.Status = DayStatusSkipped
	default:
		entry.Status = DayStatusSuccess
		entry.RawRecords = result.RawRecords()
		entry.HourlyRecords = result.HourlyRecords()
	}

	run.DailyResults = append(run.DailyResults, entry)
	run.Summary.TotalRawRecords += entry.RawRecords
	run.Summary.TotalHourlyRecords += entry.HourlyRecords

	switch entry.Status {
	case DayStatusFailed:
		run.Summary.FailedDays++
	case DayStatusSuccess:
		run.Summary.ProcessedDays++
		if !opts.DryRun {
			cp := Checkpoint{
				LastSuccessfulDate: entry.Date,
				Timestamp:          time.Now().UTC().Format(time.RFC3339),
				Source:             opts.sourceLabel(),
				ProcessedDays:      run.Summary.ProcessedDays,
				FailedDays:         run.Summary.FailedDays,
			}
			if err := o.checkpoints.Save(ctx, cp); err != nil {
				o.log.WithError(err).Warn("Could not save checkpoint")
			}
		}
	}
}

func (o *Orchestrator) logProgress(done, total int, run *RunLog, started time.Time) {
	if done%10 != 0 && done != total {
		return
	}
	elapsed := time.Since(started)
	var eta time.Duration
	if done > 0 {
		eta = time.Duration(float64(elapsed) / float64(done) * float64(total-done))
	}
	o.log.WithFields(map[string]interface{}{
		"done":      done,
		"total":     total,
		"processed": run.Summary.ProcessedDays,
		"failed":    run.Summary.FailedDays,
		"eta":       eta.Round(time.Second).String(),
	}).Infof("Progress: %d/%d days (%.1f%%)", done, total, float64(done)*100/float64(total))
}

func joinSourceErrors(result *processor.DayResult) string {
	var parts []string
	for _, s := range result.Sources {
		if s.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", s.Source, s.Err))
		}
	}
	return strings.Join(parts, "; ")
}

func allSkipped(result *processor.DayResult) bool {
	for _, s := range result.Sources {
		if s.Status != processor.StatusSkipped {
			return false
		}
	}
	return len(result.Sources) > 0
}

// groupByMonth splits an ordered day list into per-month runs.
func groupByMonth(days []time.Time) [][]time.Time {
	var months [][]time.Time
	var current []time.Time
	for _, d := range days {
		if len(current) > 0 {
			prev := current[len(current)-1]
			if prev.Year() != d.Year() || prev.Month() != d.Month() {
				months = append(months, current)
				current = nil
			}
		}
		current = append(current, d)
	}
	if len(current) > 0 {
		months = append(months, current)
	}
	return months
}
