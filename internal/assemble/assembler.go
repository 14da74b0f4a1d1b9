package assemble

import (
	"github.com/shopspring/decimal"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/internal/units"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// capacityFactorCap bounds stored capacity factors. Metered generation
// can exceed nameplate under some settlement conventions and the column
// precision is numeric(5,4).
var capacityFactorCap = decimal.NewFromFloat(9.9999)

// Stats summarizes one assembly pass for run logging.
type Stats struct {
	Candidates    int
	Records       int
	Unresolved    int
	PreCommercial int
}

// Assembler turns adapter candidates into canonical hourly rows: it
// resolves the operational unit phase for each hour, derives capacity
// factor, scores quality, and rounds MWh values at this boundary only.
type Assembler struct {
	dir *units.Directory
	log *logger.Logger
}

// New creates an assembler over a loaded unit directory.
func New(dir *units.Directory, log *logger.Logger) *Assembler {
	return &Assembler{dir: dir, log: log}
}

// Assemble builds persistable rows from candidates of one source.
// Candidates whose unit cannot be resolved are still persisted with a
// null unit id so the telemetry is not silently dropped, but they are
// counted and logged.
func (a *Assembler) Assemble(source, defaultResolution string, cands []contracts.HourlyCandidate) ([]contracts.HourlyRecord, Stats) {
	stats := Stats{Candidates: len(cands)}
	records := make([]contracts.HourlyRecord, 0, len(cands))

	for i := range cands {
		c := &cands[i]

		rec := contracts.HourlyRecord{
			Hour:             c.Hour,
			Identifier:       c.Identifier,
			GenerationMWh:    c.GenerationMWh.Round(3),
			MeteredMWh:       round3(c.MeteredMWh),
			CurtailedMWh:     round3(c.CurtailedMWh),
			ConsumptionMWh:   round3(c.ConsumptionMWh),
			RawDataIDs:       c.RawDataIDs,
			Source:           source,
			SourceResolution: resolutionOf(c, defaultResolution),
		}

		unit := a.dir.OperationalUnit(source, c.Identifier, c.Hour)
		if unit == nil {
			stats.Unresolved++
			a.log.WithFields(map[string]interface{}{
				"source":     source,
				"identifier": c.Identifier,
				"hour":       c.Hour,
			}).Warn("No operational generation unit for candidate")
		} else {
			rec.GenerationUnitID = &unit.ID
			rec.WindfarmID = unit.WindfarmID

			switch {
			case unit.PreCommercialAt(c.Hour):
				// Test or commissioning output; a capacity factor
				// here would be misleading.
				stats.PreCommercial++
			case unit.CapacityMW != nil && *unit.CapacityMW > 0:
				capacity := decimal.NewFromFloat(*unit.CapacityMW)
				rec.CapacityMW = contracts.Dec(capacity.Round(3))

				cf := rec.GenerationMWh.Div(capacity)
				if cf.GreaterThan(capacityFactorCap) {
					cf = capacityFactorCap
				}
				rec.CapacityFactor = contracts.Dec(cf.Round(4))
			}
		}

		// Source-embedded capacity figures ride along as reference
		// columns; they never feed the capacity_factor math above.
		if v, ok := metaFloat(c.Metadata, "raw_capacity_mw"); ok {
			rec.RawCapacityMW = contracts.Dec(decimal.NewFromFloat(v).Round(3))
		}
		if v, ok := metaFloat(c.Metadata, "raw_capacity_factor"); ok {
			cf := decimal.NewFromFloat(v)
			if cf.GreaterThan(capacityFactorCap) {
				cf = capacityFactorCap
			}
			rec.RawCapacityFactor = contracts.Dec(cf.Round(4))
		}

		rec.Completeness, rec.QualityScore, rec.QualityFlag = scoreQuality(c.DataPoints, c.ExpectedPoints)
		records = append(records, rec)
	}

	stats.Records = len(records)
	return records, stats
}

func metaFloat(meta map[string]any, key string) (float64, bool) {
	v, ok := meta[key].(float64)
	return v, ok
}

func resolutionOf(c *contracts.HourlyCandidate, fallback string) string {
	if r, ok := c.Metadata["resolution"].(string); ok && r != "" {
		return r
	}
	return fallback
}

// scoreQuality maps the observed/expected data point ratio onto the
// stored completeness, score and flag columns.
func scoreQuality(dataPoints, expectedPoints int) (completeness, score decimal.Decimal, flag string) {
	if expectedPoints <= 0 {
		expectedPoints = 1
	}
	ratio := decimal.NewFromInt(int64(dataPoints)).Div(decimal.NewFromInt(int64(expectedPoints)))
	one := decimal.NewFromInt(1)
	if ratio.GreaterThan(one) {
		ratio = one
	}
	completeness = ratio.Round(2)

	switch {
	case ratio.GreaterThanOrEqual(one):
		score = one
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(0.8)):
		score = decimal.NewFromFloat(0.8)
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(0.5)):
		score = decimal.NewFromFloat(0.5)
	default:
		score = ratio.Round(2)
	}

	switch {
	case score.GreaterThanOrEqual(decimal.NewFromFloat(0.9)):
		flag = contracts.QualityHigh
	case score.GreaterThanOrEqual(decimal.NewFromFloat(0.7)):
		flag = contracts.QualityMedium
	case score.GreaterThanOrEqual(decimal.NewFromFloat(0.5)):
		flag = contracts.QualityLow
	default:
		flag = contracts.QualityPoor
	}
	return completeness, score, flag
}

func round3(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	return contracts.Dec(d.Round(3))
}
