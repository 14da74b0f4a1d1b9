package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/energyexe/harmonizer/internal/adapters"
	"github.com/energyexe/harmonizer/internal/batch"
	"github.com/energyexe/harmonizer/internal/processor"
	"github.com/energyexe/harmonizer/internal/units"
	"github.com/energyexe/harmonizer/pkg/config"
	"github.com/energyexe/harmonizer/pkg/database"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// DailyAggregationJob harmonizes yesterday's telemetry for all daily
// sources. It runs each morning after the overnight collectors have
// landed their raw data.
type DailyAggregationJob struct {
	db     *database.DB
	cfg    *config.Config
	logger *logger.Logger
}

// NewDailyAggregationJob creates the daily aggregation job.
func NewDailyAggregationJob(db *database.DB, cfg *config.Config, log *logger.Logger) *DailyAggregationJob {
	return &DailyAggregationJob{db: db, cfg: cfg, logger: log}
}

// Name returns the job name
func (j *DailyAggregationJob) Name() string {
	return "daily_generation_aggregation"
}

// Schedule returns the cron schedule from configuration.
func (j *DailyAggregationJob) Schedule() string {
	return j.cfg.Processing.CronSpec
}

// Run processes yesterday (UTC) across all daily sources.
func (j *DailyAggregationJob) Run(ctx context.Context) error {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)

	checkpoints, err := batch.NewFileCheckpointStore(j.cfg.Processing.LogDir, yesterday, yesterday, "")
	if err != nil {
		return err
	}
	sink, err := batch.NewFileRunLogSink(j.cfg.Processing.LogDir, yesterday, yesterday, "", time.Now().UTC())
	if err != nil {
		return err
	}

	orchestrator := batch.NewOrchestrator(
		batch.NewPgxStoreProvider(j.db),
		units.NewRepository(j.db.Pool),
		processor.New(adapters.NewRegistry(j.logger), j.logger),
		checkpoints,
		sink,
		j.logger,
	)

	run, err := orchestrator.Run(ctx, batch.Options{Start: yesterday, End: yesterday})
	if err != nil {
		return err
	}
	if run.Summary.FailedDays > 0 {
		return fmt.Errorf("daily aggregation failed for %s, see %s",
			yesterday.Format("2006-01-02"), sink.Path())
	}
	return nil
}
