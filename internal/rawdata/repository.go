package rawdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/database"
)

// Query selects raw telemetry rows for one source over a half-open UTC
// window. Source adapters may pad the window (ELEXON settlement periods
// near the BST boundary start before UTC midnight) and filter the
// source_type set.
type Query struct {
	Source             string
	Start              time.Time
	End                time.Time
	IncludeSourceTypes []string // empty means all
	ExcludeSourceTypes []string
}

// Availability summarizes what raw data exists for one source on one day.
type Availability struct {
	Source      string     `json:"source"`
	Records     int64      `json:"records"`
	Units       int64      `json:"units"`
	EarliestRow *time.Time `json:"earliest_row,omitempty"`
	LatestRow   *time.Time `json:"latest_row,omitempty"`
}

// Repository reads the raw telemetry landing table. The table is append
// only from this engine's point of view; collectors own the writes.
type Repository struct {
	db database.Querier
}

// NewRepository creates a raw data repository.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// FetchWindow loads every raw row matching the query, ordered by
// identifier then period_start so adapters can group deterministically.
func (r *Repository) FetchWindow(ctx context.Context, q Query) ([]contracts.RawRecord, error) {
	sql := `
		SELECT id, source, source_type, identifier,
		       period_start, period_end, value_extracted, unit, data
		FROM generation_data_raw
		WHERE source = $1 AND period_start >= $2 AND period_start < $3
	`
	args := []any{q.Source, q.Start, q.End}

	if len(q.IncludeSourceTypes) > 0 {
		args = append(args, q.IncludeSourceTypes)
		sql += fmt.Sprintf(" AND source_type = ANY($%d)", len(args))
	}
	if len(q.ExcludeSourceTypes) > 0 {
		args = append(args, q.ExcludeSourceTypes)
		sql += fmt.Sprintf(" AND source_type != ALL($%d)", len(args))
	}
	sql += " ORDER BY identifier, period_start, id"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch raw data for %s: %w", q.Source, err)
	}
	defer rows.Close()

	var out []contracts.RawRecord
	for rows.Next() {
		var (
			rec     contracts.RawRecord
			payload []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.Source, &rec.SourceType, &rec.Identifier,
			&rec.PeriodStart, &rec.PeriodEnd, &rec.Value, &rec.Unit, &payload,
		); err != nil {
			return nil, fmt.Errorf("scan raw record: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rec.Payload); err != nil {
				return nil, fmt.Errorf("decode raw payload id=%d: %w", rec.ID, err)
			}
		}
		rec.PeriodStart = rec.PeriodStart.UTC()
		rec.PeriodEnd = rec.PeriodEnd.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CheckAvailability reports per-source raw record counts for a window
// without transforming anything. Backs the process --check flag.
func (r *Repository) CheckAvailability(ctx context.Context, sources []string, win contracts.DayWindow) ([]Availability, error) {
	out := make([]Availability, 0, len(sources))
	for _, source := range sources {
		var (
			a        = Availability{Source: source}
			earliest *time.Time
			latest   *time.Time
		)
		err := r.db.QueryRow(ctx, `
			SELECT COUNT(*), COUNT(DISTINCT identifier),
			       MIN(period_start), MAX(period_start)
			FROM generation_data_raw
			WHERE source = $1 AND period_start >= $2 AND period_start < $3
		`, source, win.Start, win.End).Scan(&a.Records, &a.Units, &earliest, &latest)
		if err != nil {
			return nil, fmt.Errorf("check availability for %s: %w", source, err)
		}
		a.EarliestRow = earliest
		a.LatestRow = latest
		out = append(out, a)
	}
	return out, nil
}
