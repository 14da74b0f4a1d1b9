package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/energyexe/harmonizer/internal/adapters"
	"github.com/energyexe/harmonizer/internal/batch"
	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/internal/generation"
	"github.com/energyexe/harmonizer/internal/processor"
	"github.com/energyexe/harmonizer/internal/rawdata"
	"github.com/energyexe/harmonizer/internal/units"
)

var (
	processDate   string
	processSource string
	processCheck  bool
	processDryRun bool
)

// processCmd processes a single UTC day.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one day of raw telemetry",
	Long: `Process fetches raw rows for one UTC day, transforms them per
source, assembles canonical hourly records and persists them in a
single transaction.

Examples:
  go run ./cmd/harmonizer process --date 2024-03-10
  go run ./cmd/harmonizer process --date 2024-03-10 --source ENTSOE
  go run ./cmd/harmonizer process --date 2024-03-10 --check
  go run ./cmd/harmonizer process --date 2024-03-10 --dry-run`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVar(&processDate, "date", "", "UTC day to process (YYYY-MM-DD, default: yesterday)")
	processCmd.Flags().StringVar(&processSource, "source", "", "process a single source (default: all daily sources)")
	processCmd.Flags().BoolVar(&processCheck, "check", false, "report raw data availability without processing")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "run the full pipeline, then roll back")
}

func runProcess(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC().AddDate(0, 0, -1)
	if processDate != "" {
		var err error
		date, err = parseDay("date", processDate)
		if err != nil {
			return err
		}
	}
	source, err := parseSourceFlag(processSource)
	if err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if processCheck {
		sources := contracts.AllSources()
		if source != "" {
			sources = []string{source}
		}
		win := contracts.DayWindowFor(date)
		report, err := rawdata.NewRepository(db.Pool).CheckAvailability(ctx, sources, win)
		if err != nil {
			return err
		}
		genRepo := generation.NewRepository(db.Pool)
		fmt.Printf("\nRaw data availability for %s:\n", date.Format("2006-01-02"))
		for _, a := range report {
			window := "-"
			if a.EarliestRow != nil && a.LatestRow != nil {
				window = fmt.Sprintf("%s .. %s",
					a.EarliestRow.UTC().Format("15:04"), a.LatestRow.UTC().Format("15:04"))
			}
			stored, err := genRepo.CountWindow(ctx, generation.Scope{Source: a.Source, Window: win})
			if err != nil {
				return err
			}
			fmt.Printf("  %-16s records=%-8d units=%-5d stored=%-6d window=%s\n",
				a.Source, a.Records, a.Units, stored, window)
		}
		return nil
	}

	sources := contracts.DailySources()
	if source != "" {
		sources = []string{source}
	}

	dir, err := units.NewRepository(db.Pool).LoadDirectory(ctx)
	if err != nil {
		return fmt.Errorf("load unit directory: %w", err)
	}
	log.WithField("units", dir.Len()).Info("Loaded generation unit directory")

	proc := processor.New(adapters.NewRegistry(log), log)
	provider := batch.NewPgxStoreProvider(db)

	var result *processor.DayResult
	err = provider.RunInTransaction(ctx, processDryRun, func(s processor.Store) error {
		r, err := proc.ProcessDay(ctx, s, dir, date, sources)
		result = r
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nDate: %s%s\n", date.Format("2006-01-02"), dryRunSuffix(processDryRun))
	for _, s := range result.Sources {
		line := fmt.Sprintf("  %-16s %-9s raw=%-7d hourly=%-6d replaced=%-6d %.2fs",
			s.Source, s.Status, s.RawRecords, s.HourlyRecords, s.Deleted, s.Duration.Seconds())
		if s.Err != nil {
			line += fmt.Sprintf("  error=%v", s.Err)
		}
		fmt.Println(line)
	}

	if result.Failed() {
		return fmt.Errorf("processing failed for %s", date.Format("2006-01-02"))
	}
	return nil
}

func dryRunSuffix(dryRun bool) string {
	if dryRun {
		return " (dry run, rolled back)"
	}
	return ""
}
