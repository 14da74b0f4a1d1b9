package adapters

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/energyexe/harmonizer/internal/contracts"
)

// ENTSOE harmonizes European transmission-system telemetry. Units report
// at 15, 30 or 60 minute resolution, and the resolution tag in the
// payload is unreliable for some TSOs, so the actual resolution is
// inferred from how many valid readings land in each hour.
type ENTSOE struct{}

// NewENTSOE creates the ENTSOE adapter.
func NewENTSOE() *ENTSOE {
	return &ENTSOE{}
}

func (a *ENTSOE) Source() string     { return contracts.SourceENTSOE }
func (a *ENTSOE) Resolution() string { return ResolutionPT60M }

func (a *ENTSOE) FetchSpec() FetchSpec {
	// Consumption rows ride along and are split out in Transform.
	return FetchSpec{}
}

// entsoeGroup is one hour's worth of valid readings for one unit.
type entsoeGroup struct {
	values     []decimal.Decimal
	rawIDs     []int64
	capacityMW *float64
}

func (g *entsoeGroup) add(r *contracts.RawRecord) {
	g.values = append(g.values, decimal.NewFromFloat(*r.Value))
	g.rawIDs = append(g.rawIDs, r.ID)
	if g.capacityMW == nil {
		if capMW, ok := r.PayloadFloat("installed_capacity_mw"); ok {
			g.capacityMW = &capMW
		}
	}
}

// aggregate infers resolution from the valid-reading count, then
// averages sub-hourly readings in exact decimal arithmetic.
func (g *entsoeGroup) aggregate() (value decimal.Decimal, resolution string, expected int) {
	switch n := len(g.values); {
	case n >= 3:
		resolution, expected = ResolutionPT15M, 4
	case n == 2:
		resolution, expected = ResolutionPT30M, 2
	default:
		return g.values[0], ResolutionPT60M, 1
	}
	sum := decimal.Zero
	for _, v := range g.values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(g.values)))), resolution, expected
}

func (a *ENTSOE) Transform(win contracts.DayWindow, rows []contracts.RawRecord) []contracts.HourlyCandidate {
	generation := make(map[hourKey]*entsoeGroup)
	consumption := make(map[hourKey]*entsoeGroup)

	for i := range rows {
		r := &rows[i]
		if !r.HasValue() {
			continue
		}
		key := hourKey{hour: r.PeriodStart.Truncate(time.Hour), identifier: r.Identifier}
		if !win.Contains(key.hour) {
			continue
		}
		buckets := generation
		if contracts.IsConsumptionType(r.SourceType) {
			buckets = consumption
		}
		g, ok := buckets[key]
		if !ok {
			g = &entsoeGroup{}
			buckets[key] = g
		}
		g.add(r)
	}

	cands := make([]contracts.HourlyCandidate, 0, len(generation))
	for key, g := range generation {
		value, resolution, expected := g.aggregate()
		metadata := map[string]any{"resolution": resolution}
		if g.capacityMW != nil {
			// Reported nameplate rides along for reference; the unit
			// directory owns the capacity used for CF math.
			metadata["raw_capacity_mw"] = *g.capacityMW
		}
		cand := contracts.HourlyCandidate{
			Hour:           key.hour,
			Identifier:     key.identifier,
			GenerationMWh:  value,
			RawDataIDs:     g.rawIDs,
			DataPoints:     len(g.values),
			ExpectedPoints: expected,
			Metadata:       metadata,
		}
		// Consumption readings for the same hour ride on the
		// generation record rather than producing a second row.
		if cg, ok := consumption[key]; ok {
			cons, _, _ := cg.aggregate()
			cand.ConsumptionMWh = contracts.Dec(cons)
			cand.RawDataIDs = append(cand.RawDataIDs, cg.rawIDs...)
			delete(consumption, key)
		}
		cands = append(cands, cand)
	}

	// Consumption-only hours: no generation reading exists, emit a
	// zero-generation record so the consumption is not lost.
	for key, cg := range consumption {
		cons, resolution, expected := cg.aggregate()
		cands = append(cands, contracts.HourlyCandidate{
			Hour:           key.hour,
			Identifier:     key.identifier,
			GenerationMWh:  decimal.Zero,
			ConsumptionMWh: contracts.Dec(cons),
			RawDataIDs:     cg.rawIDs,
			DataPoints:     len(cg.values),
			ExpectedPoints: expected,
			Metadata:       map[string]any{"resolution": resolution},
		})
	}

	return sortCandidates(cands)
}
