package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Day-level statuses recorded in run logs.
const (
	DayStatusSuccess = "success"
	DayStatusFailed  = "failed"
	DayStatusSkipped = "skipped"
)

// DayEntry is the run-log record for one processed day.
type DayEntry struct {
	Date                  string  `json:"date"`
	Source                string  `json:"source"`
	Status                string  `json:"status"`
	RawRecords            int     `json:"raw_records"`
	HourlyRecords         int     `json:"hourly_records"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	Error                 string  `json:"error,omitempty"`
	Timestamp             string  `json:"timestamp"`
}

// Summary aggregates a whole batch run.
type Summary struct {
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	TotalDays          int    `json:"total_days"`
	ProcessedDays      int    `json:"processed_days"`
	FailedDays         int    `json:"failed_days"`
	SkippedDays        int    `json:"skipped_days"`
	TotalRawRecords    int    `json:"total_raw_records"`
	TotalHourlyRecords int    `json:"total_hourly_records"`
	Source             string `json:"source"`
	DryRun             bool   `json:"dry_run"`
}

// RunLog is the JSON document written after every run. Failed days can
// be replayed from it with the --retry flag.
type RunLog struct {
	Summary      Summary    `json:"summary"`
	DailyResults []DayEntry `json:"daily_results"`
}

// FailedDates extracts the distinct failed days, sorted ascending.
func (l *RunLog) FailedDates() ([]time.Time, error) {
	seen := make(map[string]bool)
	var dates []time.Time
	for _, r := range l.DailyResults {
		if r.Status != DayStatusFailed || seen[r.Date] {
			continue
		}
		seen[r.Date] = true
		d, err := time.ParseInLocation("2006-01-02", r.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in run log: %w", r.Date, err)
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// RunLogSink persists a run log.
type RunLogSink interface {
	Write(log *RunLog) error
}

// FileRunLogSink writes the run log as indented JSON into the log
// directory, named after the range, source and run timestamp.
type FileRunLogSink struct {
	path string
}

// NewFileRunLogSink builds a sink for one run.
func NewFileRunLogSink(logDir string, start, end time.Time, source string, now time.Time) (*FileRunLogSink, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	suffix := "_all"
	if source != "" {
		suffix = "_" + source
	}
	name := fmt.Sprintf("process_%s_%s%s_%s.json",
		start.Format("20060102"), end.Format("20060102"), suffix,
		now.Format("20060102_150405"))
	return &FileRunLogSink{path: filepath.Join(logDir, name)}, nil
}

// Path returns the run log file location.
func (s *FileRunLogSink) Path() string { return s.path }

func (s *FileRunLogSink) Write(log *RunLog) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	return nil
}

// MemoryRunLogSink captures run logs in memory for tests.
type MemoryRunLogSink struct {
	Logs []*RunLog
}

func (s *MemoryRunLogSink) Write(log *RunLog) error {
	s.Logs = append(s.Logs, log)
	return nil
}

// ReadRunLog loads a run log written by a previous run.
func ReadRunLog(path string) (*RunLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	var log RunLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decode run log %s: %w", path, err)
	}
	return &log, nil
}

// Analyze prints run-log statistics: failure details, per-day timing and
// raw-to-hourly volume, in the shape operators expect from batch reports.
func Analyze(w io.Writer, path string, log *RunLog) {
	fmt.Fprintf(w, "\n%s\n", divider)
	fmt.Fprintf(w, "LOG ANALYSIS: %s\n", filepath.Base(path))
	fmt.Fprintf(w, "%s\n", divider)
	fmt.Fprintf(w, "%-20s: %d\n", "total_days", log.Summary.TotalDays)
	fmt.Fprintf(w, "%-20s: %d\n", "processed_days", log.Summary.ProcessedDays)
	fmt.Fprintf(w, "%-20s: %d\n", "failed_days", log.Summary.FailedDays)
	fmt.Fprintf(w, "%-20s: %d\n", "skipped_days", log.Summary.SkippedDays)
	fmt.Fprintf(w, "%-20s: %d\n", "total_raw_records", log.Summary.TotalRawRecords)
	fmt.Fprintf(w, "%-20s: %d\n", "total_hourly_records", log.Summary.TotalHourlyRecords)
	fmt.Fprintf(w, "%-20s: %s\n", "source", log.Summary.Source)
	fmt.Fprintf(w, "%-20s: %t\n", "dry_run", log.Summary.DryRun)

	var failed, succeeded []DayEntry
	for _, r := range log.DailyResults {
		switch r.Status {
		case DayStatusFailed:
			failed = append(failed, r)
		case DayStatusSuccess:
			succeeded = append(succeeded, r)
		}
	}

	if len(failed) > 0 {
		fmt.Fprintf(w, "\nFailed days (%d):\n", len(failed))
		for i, r := range failed {
			if i >= 10 {
				fmt.Fprintf(w, "  ... and %d more\n", len(failed)-10)
				break
			}
			fmt.Fprintf(w, "  %s: %s\n", r.Date, r.Error)
		}
	}

	if len(succeeded) > 0 {
		minT, maxT, sum := succeeded[0].ProcessingTimeSeconds, succeeded[0].ProcessingTimeSeconds, 0.0
		totalRaw, totalHourly := 0, 0
		for _, r := range succeeded {
			sum += r.ProcessingTimeSeconds
			if r.ProcessingTimeSeconds < minT {
				minT = r.ProcessingTimeSeconds
			}
			if r.ProcessingTimeSeconds > maxT {
				maxT = r.ProcessingTimeSeconds
			}
			totalRaw += r.RawRecords
			totalHourly += r.HourlyRecords
		}
		fmt.Fprintf(w, "\nProcessing time per day:\n")
		fmt.Fprintf(w, "  Average: %.1f seconds\n", sum/float64(len(succeeded)))
		fmt.Fprintf(w, "  Min:     %.1f seconds\n", minT)
		fmt.Fprintf(w, "  Max:     %.1f seconds\n", maxT)
		fmt.Fprintf(w, "\nData processed:\n")
		fmt.Fprintf(w, "  Total raw records:    %d\n", totalRaw)
		fmt.Fprintf(w, "  Total hourly records: %d\n", totalHourly)
		if totalHourly > 0 {
			fmt.Fprintf(w, "  Compression ratio:    %.1f:1\n", float64(totalRaw)/float64(totalHourly))
		}
	}
}

const divider = "============================================================"
