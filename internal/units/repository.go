package units

import (
	"context"
	"fmt"
	"time"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/database"
)

// Repository reads the generation unit dimension. The dimension tables
// are owned by upstream admin processes; this engine only reads them.
type Repository struct {
	db database.Querier
}

// NewRepository creates a unit repository.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// LoadAll loads every generation unit joined with its windfarm's
// commercial operational date.
func (r *Repository) LoadAll(ctx context.Context) ([]contracts.GenerationUnit, error) {
	query := `
		SELECT
			gu.id,
			gu.source,
			gu.code,
			COALESCE(gu.name, ''),
			gu.capacity_mw,
			gu.start_date,
			gu.end_date,
			gu.first_power_date,
			gu.windfarm_id,
			wf.commercial_operational_date
		FROM generation_units gu
		LEFT JOIN windfarms wf ON gu.windfarm_id = wf.id
		ORDER BY gu.source, gu.code, gu.start_date
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load generation units: %w", err)
	}
	defer rows.Close()

	var units []contracts.GenerationUnit
	for rows.Next() {
		var (
			u          contracts.GenerationUnit
			capacity   *float64
			start, end *time.Time
			firstPower *time.Time
			windfarmID *int64
			commercial *time.Time
		)
		if err := rows.Scan(
			&u.ID, &u.Source, &u.Code, &u.Name,
			&capacity, &start, &end, &firstPower,
			&windfarmID, &commercial,
		); err != nil {
			return nil, fmt.Errorf("scan generation unit: %w", err)
		}
		u.CapacityMW = capacity
		u.StartDate = start
		u.EndDate = end
		u.FirstPowerDate = firstPower
		u.WindfarmID = windfarmID
		u.CommercialOperationalDate = commercial
		units = append(units, u)
	}
	return units, rows.Err()
}

// LoadDirectory is a convenience that loads all units and builds the
// in-memory directory in one call.
func (r *Repository) LoadDirectory(ctx context.Context) (*Directory, error) {
	all, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewDirectory(all), nil
}
