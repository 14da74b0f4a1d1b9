package batch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// ParallelOptions configures the parallel monthly fan-out.
type ParallelOptions struct {
	Start   time.Time
	End     time.Time // inclusive
	Source  string
	DryRun  bool
	Workers int
	LogDir  string
}

// MonthJob is one month handed to a worker process.
type MonthJob struct {
	Start time.Time
	End   time.Time // inclusive
}

func (m MonthJob) label() string { return m.Start.Format("2006-01") }

// SplitMonths cuts an inclusive date range into month jobs clipped to the
// range boundaries.
func SplitMonths(start, end time.Time) []MonthJob {
	start = contracts.DayWindowFor(start).Start
	end = contracts.DayWindowFor(end).Start

	var jobs []MonthJob
	for cur := start; !cur.After(end); {
		monthEnd := contracts.MonthWindowFor(cur).End.AddDate(0, 0, -1)
		if monthEnd.After(end) {
			monthEnd = end
		}
		jobs = append(jobs, MonthJob{Start: cur, End: monthEnd})
		cur = monthEnd.AddDate(0, 0, 1)
	}
	return jobs
}

// RunParallelMonths reprocesses a range by spawning one worker process
// per month, at most Workers at a time. Separate processes give each
// month its own connection pool and failure domain; a panic or OOM in
// one month cannot take down the others.
func RunParallelMonths(ctx context.Context, opts ParallelOptions, log *logger.Logger) error {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	jobs := SplitMonths(opts.Start, opts.End)
	log.WithFields(map[string]interface{}{
		"months":  len(jobs),
		"workers": opts.Workers,
	}).Info("Starting parallel monthly fan-out")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			args := []string{
				"batch",
				"--monthly",
				"--start", job.Start.Format("2006-01-02"),
				"--end", job.End.Format("2006-01-02"),
				"--log-dir", opts.LogDir,
			}
			if opts.Source != "" {
				args = append(args, "--source", opts.Source)
			}
			if opts.DryRun {
				args = append(args, "--dry-run")
			}

			outPath := filepath.Join(opts.LogDir, "parallel_"+job.label()+".log")
			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create worker log for %s: %w", job.label(), err)
			}
			defer out.Close()

			cmd := exec.CommandContext(ctx, exe, args...)
			cmd.Stdout = out
			cmd.Stderr = out

			log.WithField("month", job.label()).Info("Worker started")
			if err := cmd.Run(); err != nil {
				log.WithError(err).WithField("month", job.label()).Error("Worker failed")
				return fmt.Errorf("month %s: %w", job.label(), err)
			}
			log.WithField("month", job.label()).Info("Worker finished")
			return nil
		})
	}

	return g.Wait()
}
