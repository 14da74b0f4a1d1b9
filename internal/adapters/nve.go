package adapters

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/energyexe/harmonizer/internal/contracts"
)

// NVE harmonizes Norwegian hydro/wind telemetry. A single unit can report
// through several meters for the same hour; the meters are summed into
// exactly one candidate per (unit, hour).
type NVE struct{}

// NewNVE creates the NVE adapter.
func NewNVE() *NVE {
	return &NVE{}
}

func (a *NVE) Source() string       { return contracts.SourceNVE }
func (a *NVE) Resolution() string   { return ResolutionPT60M }
func (a *NVE) FetchSpec() FetchSpec { return FetchSpec{} }

type nveGroup struct {
	sum    decimal.Decimal
	meters int
	rawIDs []int64
}

func (a *NVE) Transform(win contracts.DayWindow, rows []contracts.RawRecord) []contracts.HourlyCandidate {
	groups := make(map[hourKey]*nveGroup)

	for i := range rows {
		r := &rows[i]
		if !r.HasValue() {
			continue
		}
		hour := r.PeriodStart.Truncate(time.Hour)
		if !win.Contains(hour) {
			continue
		}
		key := hourKey{hour: hour, identifier: r.Identifier}
		g, ok := groups[key]
		if !ok {
			g = &nveGroup{}
			groups[key] = g
		}
		g.sum = g.sum.Add(decimal.NewFromFloat(*r.Value))
		g.meters++
		g.rawIDs = append(g.rawIDs, r.ID)
	}

	cands := make([]contracts.HourlyCandidate, 0, len(groups))
	for key, g := range groups {
		cands = append(cands, contracts.HourlyCandidate{
			Hour:           key.hour,
			Identifier:     key.identifier,
			GenerationMWh:  g.sum,
			RawDataIDs:     g.rawIDs,
			DataPoints:     g.meters,
			ExpectedPoints: 1,
			Metadata:       map[string]any{"meters": g.meters},
		})
	}

	return sortCandidates(cands)
}
