package adapters

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// TAIPOWER harmonizes Taiwanese grid telemetry. Readings are already
// hourly; the reported value is used directly. The feed embeds its own
// capacity figure, which is kept as reference metadata and never used
// for capacity-factor math (the unit directory owns that).
type TAIPOWER struct {
	log *logger.Logger
}

// NewTAIPOWER creates the TAIPOWER adapter.
func NewTAIPOWER(log *logger.Logger) *TAIPOWER {
	return &TAIPOWER{log: log}
}

func (a *TAIPOWER) Source() string       { return contracts.SourceTAIPOWER }
func (a *TAIPOWER) Resolution() string   { return ResolutionPT60M }
func (a *TAIPOWER) FetchSpec() FetchSpec { return FetchSpec{} }

func (a *TAIPOWER) Transform(win contracts.DayWindow, rows []contracts.RawRecord) []contracts.HourlyCandidate {
	seen := make(map[hourKey]bool)
	cands := make([]contracts.HourlyCandidate, 0, len(rows))

	for i := range rows {
		r := &rows[i]
		if !r.HasValue() {
			a.log.WithField("raw_id", r.ID).Warn("Skipping TAIPOWER record with null generation value")
			continue
		}
		hour := r.PeriodStart.Truncate(time.Hour)
		if !win.Contains(hour) {
			continue
		}
		key := hourKey{hour: hour, identifier: r.Identifier}
		if seen[key] {
			continue
		}
		seen[key] = true

		metadata := map[string]any{}
		if cap, ok := r.PayloadFloat("installed_capacity_mw"); ok {
			metadata["raw_capacity_mw"] = cap
		}
		if cf, ok := r.PayloadFloat("capacity_factor"); ok {
			metadata["raw_capacity_factor"] = cf
		}

		cands = append(cands, contracts.HourlyCandidate{
			Hour:           hour,
			Identifier:     r.Identifier,
			GenerationMWh:  decimal.NewFromFloat(*r.Value),
			RawDataIDs:     []int64{r.ID},
			DataPoints:     1,
			ExpectedPoints: 1,
			Metadata:       metadata,
		})
	}

	return sortCandidates(cands)
}
