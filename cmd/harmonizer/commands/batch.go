package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/energyexe/harmonizer/internal/adapters"
	"github.com/energyexe/harmonizer/internal/batch"
	"github.com/energyexe/harmonizer/internal/processor"
	"github.com/energyexe/harmonizer/internal/units"
	"github.com/energyexe/harmonizer/pkg/config"
	"github.com/energyexe/harmonizer/pkg/logger"
	"github.com/energyexe/harmonizer/pkg/redis"
)

var (
	batchStart   string
	batchEnd     string
	batchSource  string
	batchResume  bool
	batchDryRun  bool
	batchMonthly bool
	batchWorkers int
	batchPace    time.Duration
	batchLogDir  string
	batchAnalyze string
	batchRetry   string
)

// batchCmd processes a date range day by day with checkpoint/resume.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process a date range with checkpointing",
	Long: `Batch processes an inclusive date range one day (or month) per
transaction, writing a checkpoint after every committed period and a
JSON run log at the end. Interrupt with Ctrl+C and continue later with
--resume; replay only the failures of a previous run with --retry.

Examples:
  go run ./cmd/harmonizer batch --start 2024-01-01 --end 2024-03-31
  go run ./cmd/harmonizer batch --start 2024-01-01 --end 2024-03-31 --resume
  go run ./cmd/harmonizer batch --start 2023-01-01 --end 2023-12-31 --monthly --workers 4
  go run ./cmd/harmonizer batch --analyze generation_processing_logs/process_x.json
  go run ./cmd/harmonizer batch --retry generation_processing_logs/process_x.json`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&batchStart, "start", "", "start date (YYYY-MM-DD)")
	batchCmd.Flags().StringVar(&batchEnd, "end", "", "end date, inclusive (YYYY-MM-DD)")
	batchCmd.Flags().StringVar(&batchSource, "source", "", "process a single source (default: all daily sources)")
	batchCmd.Flags().BoolVar(&batchResume, "resume", false, "resume from the last checkpoint for this range")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "run the full pipeline, then roll back each period")
	batchCmd.Flags().BoolVar(&batchMonthly, "monthly", false, "one transaction per month instead of per day")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 1, "parallel worker processes (monthly mode only)")
	batchCmd.Flags().DurationVar(&batchPace, "pace", 0, "minimum spacing between periods, e.g. 2s")
	batchCmd.Flags().StringVar(&batchLogDir, "log-dir", "", "override the processing log directory")
	batchCmd.Flags().StringVar(&batchAnalyze, "analyze", "", "analyze a run log and exit")
	batchCmd.Flags().StringVar(&batchRetry, "retry", "", "retry the failed days of a run log")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchAnalyze != "" {
		log, err := batch.ReadRunLog(batchAnalyze)
		if err != nil {
			return err
		}
		batch.Analyze(os.Stdout, batchAnalyze, log)
		return nil
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if batchLogDir != "" {
		cfg.Processing.LogDir = batchLogDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if batchRetry != "" {
		return runRetry(ctx, cfg, log)
	}

	if batchStart == "" || batchEnd == "" {
		return fmt.Errorf("--start and --end are required")
	}
	start, err := parseDay("start", batchStart)
	if err != nil {
		return err
	}
	end, err := parseDay("end", batchEnd)
	if err != nil {
		return err
	}
	source, err := parseSourceFlag(batchSource)
	if err != nil {
		return err
	}

	// Monthly fan-out spawns one worker process per month; each worker
	// lands back here with --monthly and --workers 1.
	if batchMonthly && batchWorkers > 1 {
		return batch.RunParallelMonths(ctx, batch.ParallelOptions{
			Start:   start,
			End:     end,
			Source:  source,
			DryRun:  batchDryRun,
			Workers: batchWorkers,
			LogDir:  cfg.Processing.LogDir,
		}, log)
	}

	opts := batch.Options{
		Start:   start,
		End:     end,
		Source:  source,
		DryRun:  batchDryRun,
		Resume:  batchResume,
		Monthly: batchMonthly,
		Pace:    batchPace,
	}
	if opts.Pace == 0 {
		opts.Pace = cfg.Processing.Pace
	}
	return executeBatch(ctx, cfg, log, opts)
}

// runRetry replays the failed days recorded in a previous run log.
func runRetry(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	prev, err := batch.ReadRunLog(batchRetry)
	if err != nil {
		return err
	}
	failed, err := prev.FailedDates()
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		fmt.Println("No failed days to retry")
		return nil
	}
	fmt.Printf("Found %d failed days to retry\n", len(failed))

	source := prev.Summary.Source
	if source == "ALL" {
		source = ""
	}

	return executeBatch(ctx, cfg, log, batch.Options{
		Dates:  failed,
		Source: source,
		DryRun: batchDryRun,
		Pace:   batchPace,
	})
}

func executeBatch(ctx context.Context, cfg *config.Config, log *logger.Logger, opts batch.Options) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cpStart, cpEnd := opts.Start, opts.End
	if len(opts.Dates) > 0 {
		cpStart, cpEnd = opts.Dates[0], opts.Dates[len(opts.Dates)-1]
	}

	checkpoints, err := buildCheckpointStore(cfg, log, cpStart, cpEnd, opts.Source)
	if err != nil {
		return err
	}
	sink, err := batch.NewFileRunLogSink(cfg.Processing.LogDir, cpStart, cpEnd, opts.Source, time.Now().UTC())
	if err != nil {
		return err
	}
	log.WithField("run_log", sink.Path()).Info("Run log initialized")

	orchestrator := batch.NewOrchestrator(
		batch.NewPgxStoreProvider(db),
		units.NewRepository(db.Pool),
		processor.New(adapters.NewRegistry(log), log),
		checkpoints,
		sink,
		log,
	)

	run, err := orchestrator.Run(ctx, opts)
	if err != nil {
		return err
	}

	printBatchSummary(run, sink.Path())
	if run.Summary.FailedDays > 0 {
		return fmt.Errorf("%d of %d days failed, retry with --retry %s",
			run.Summary.FailedDays, run.Summary.TotalDays, sink.Path())
	}
	return nil
}

// buildCheckpointStore prefers Redis when configured so progress is
// shared across hosts; otherwise checkpoints live next to the run logs.
func buildCheckpointStore(cfg *config.Config, log *logger.Logger, start, end time.Time, source string) (batch.CheckpointStore, error) {
	if cfg.Redis.Enabled {
		client, err := redis.New(cfg)
		if err != nil {
			return nil, err
		}
		log.Info("Using Redis checkpoint store")
		return batch.NewRedisCheckpointStore(client, start, end, source), nil
	}
	return batch.NewFileCheckpointStore(cfg.Processing.LogDir, start, end, source)
}

func printBatchSummary(run *batch.RunLog, logPath string) {
	s := run.Summary
	fmt.Println("\n============================================================")
	fmt.Println("PROCESSING COMPLETE")
	fmt.Println("============================================================")
	fmt.Printf("Source:               %s\n", s.Source)
	fmt.Printf("Total days:           %d\n", s.TotalDays)
	fmt.Printf("Successful days:      %d\n", s.ProcessedDays)
	fmt.Printf("Failed days:          %d\n", s.FailedDays)
	fmt.Printf("Skipped days:         %d\n", s.SkippedDays)
	fmt.Printf("Total raw records:    %d\n", s.TotalRawRecords)
	fmt.Printf("Total hourly records: %d\n", s.TotalHourlyRecords)
	if s.FailedDays > 0 {
		fmt.Println("\nFailed days:")
		for _, r := range run.DailyResults {
			if r.Status == batch.DayStatusFailed {
				fmt.Printf("  - %s: %s\n", r.Date, r.Error)
			}
		}
	}
	if s.DryRun {
		fmt.Println("\nDRY RUN - No changes made to database")
	}
	fmt.Printf("\nDetailed log: %s\n", logPath)
}
