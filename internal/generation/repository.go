package generation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/database"
)

// Scope identifies the slice of the hourly fact table a replace operation
// owns: one source over one UTC window. Re-running a period first deletes
// everything in scope, so processing is idempotent.
type Scope struct {
	Source string
	Window contracts.DayWindow
}

// Repository persists assembled hourly rows into generation_data.
type Repository struct {
	db database.Querier
}

// NewRepository creates a generation data repository. The querier may be
// a pool, a transaction, or a savepoint.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

var copyColumns = []string{
	"hour",
	"generation_unit_id",
	"windfarm_id",
	"generation_mwh",
	"capacity_mw",
	"capacity_factor",
	"raw_capacity_mw",
	"raw_capacity_factor",
	"metered_mwh",
	"curtailed_mwh",
	"consumption_mwh",
	"raw_data_ids",
	"quality_flag",
	"quality_score",
	"completeness",
	"source",
	"source_resolution",
}

// Replace deletes every row in scope and bulk-inserts the given records.
// It returns how many rows were deleted and inserted. Callers are expected
// to run it inside a transaction so a failed insert also rolls back the
// delete.
func (r *Repository) Replace(ctx context.Context, scope Scope, records []contracts.HourlyRecord) (deleted, inserted int64, err error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM generation_data
		WHERE source = $1 AND hour >= $2 AND hour < $3
	`, scope.Source, scope.Window.Start, scope.Window.End)
	if err != nil {
		return 0, 0, fmt.Errorf("delete generation data for %s: %w", scope.Source, err)
	}
	deleted = tag.RowsAffected()

	if len(records) == 0 {
		return deleted, 0, nil
	}

	rows := make([][]any, 0, len(records))
	for i := range records {
		rec := &records[i]
		rows = append(rows, []any{
			rec.Hour.UTC(),
			rec.GenerationUnitID,
			rec.WindfarmID,
			rec.GenerationMWh,
			rec.CapacityMW,
			rec.CapacityFactor,
			rec.RawCapacityMW,
			rec.RawCapacityFactor,
			rec.MeteredMWh,
			rec.CurtailedMWh,
			rec.ConsumptionMWh,
			rec.RawDataIDs,
			rec.QualityFlag,
			rec.QualityScore,
			rec.Completeness,
			rec.Source,
			rec.SourceResolution,
		})
	}

	inserted, err = r.db.CopyFrom(ctx,
		pgx.Identifier{"generation_data"},
		copyColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return deleted, 0, fmt.Errorf("copy generation data for %s: %w", scope.Source, err)
	}
	return deleted, inserted, nil
}

// CountWindow returns the number of canonical rows currently stored for a
// source inside a window. Used by availability checks and dry runs.
func (r *Repository) CountWindow(ctx context.Context, scope Scope) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM generation_data
		WHERE source = $1 AND hour >= $2 AND hour < $3
	`, scope.Source, scope.Window.Start, scope.Window.End).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count generation data for %s: %w", scope.Source, err)
	}
	return n, nil
}
