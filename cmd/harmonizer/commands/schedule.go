package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/energyexe/harmonizer/internal/scheduler"
	"github.com/energyexe/harmonizer/internal/scheduler/jobs"
)

var (
	scheduleRunNow bool
	scheduleCron   string
)

// scheduleCmd runs the scheduler daemon.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the aggregation scheduler daemon",
	Long: `Schedule starts a daemon that harmonizes yesterday's telemetry
every morning (PROCESSING_CRON, default 06:30 UTC), after the overnight
collectors have landed their raw data.

Examples:
  go run ./cmd/harmonizer schedule
  go run ./cmd/harmonizer schedule --run-now`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "trigger the daily aggregation immediately on startup")
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "override the cron spec (seconds field included, default from PROCESSING_CRON)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if scheduleCron != "" {
		cfg.Processing.CronSpec = scheduleCron
	}

	sched := scheduler.New(log)
	daily := jobs.NewDailyAggregationJob(db, cfg, log)
	if err := sched.AddJob(daily); err != nil {
		return err
	}

	sched.Start()
	fmt.Printf("Scheduler started, %s runs at %q. Press Ctrl+C to stop.\n",
		daily.Name(), daily.Schedule())

	if scheduleRunNow {
		if err := sched.RunJob(daily.Name()); err != nil {
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()

	for name, stats := range sched.GetJobStats() {
		log.WithFields(map[string]interface{}{
			"job":          name,
			"total_runs":   stats.TotalRuns,
			"success_rate": stats.SuccessRate,
		}).Info("Job statistics at shutdown")
	}
	return nil
}
