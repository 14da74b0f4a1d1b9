package adapters

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// ukLocation is loaded once; the zone database ships with the binary via
// the timezone data embedded by the platform.
var ukLocation = mustLoadLocation("Europe/London")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("load timezone " + name + ": " + err.Error())
	}
	return loc
}

// ELEXON harmonizes GB settlement data. Metered volumes arrive as
// 30-minute settlement periods; curtailment arrives as balancing-market
// bid acceptances (boav_bid) whose absolute volumes are added back so
// generation_mwh reflects what the unit would have produced.
type ELEXON struct {
	log *logger.Logger
}

// NewELEXON creates the ELEXON adapter.
func NewELEXON(log *logger.Logger) *ELEXON {
	return &ELEXON{log: log}
}

func (a *ELEXON) Source() string     { return contracts.SourceELEXON }
func (a *ELEXON) Resolution() string { return ResolutionPT30M }

func (a *ELEXON) FetchSpec() FetchSpec {
	// During BST the first settlement period of a UK day starts at
	// 23:00 UTC the previous day, so the fetch window opens an hour
	// early. Transform filters the output back to the day window.
	return FetchSpec{
		PadStart:           time.Hour,
		ExcludeSourceTypes: []string{contracts.SourceTypeBOAVOffer},
	}
}

// settlementHour derives the UTC hour from settlement_date and
// settlement_period. The raw period_start column is not trusted: some
// feeds store UK local time in it, which is an hour off during BST.
func settlementHour(settlementDate string, settlementPeriod int) (time.Time, bool) {
	var y, m, d int
	var err error
	s := settlementDate
	if len(s) == 8 && !strings.Contains(s, "-") { // YYYYMMDD
		y, err = strconv.Atoi(s[:4])
		if err == nil {
			m, err = strconv.Atoi(s[4:6])
		}
		if err == nil {
			d, err = strconv.Atoi(s[6:8])
		}
	} else {
		if len(s) > 10 {
			s = s[:10]
		}
		parts := strings.Split(s, "-")
		if len(parts) != 3 {
			return time.Time{}, false
		}
		y, err = strconv.Atoi(parts[0])
		if err == nil {
			m, err = strconv.Atoi(parts[1])
		}
		if err == nil {
			d, err = strconv.Atoi(parts[2])
		}
	}
	if err != nil || settlementPeriod < 1 {
		return time.Time{}, false
	}

	ukMidnight := time.Date(y, time.Month(m), d, 0, 0, 0, 0, ukLocation)
	ts := ukMidnight.UTC().Add(time.Duration(settlementPeriod-1) * 30 * time.Minute)
	return ts.Truncate(time.Hour), true
}

// signedVolume extracts the 30-minute MWh with the sign dictated by the
// import/export indicator. Export means delivered to grid (positive);
// import means drawn from grid (negative). The stored sign alone is not
// reliable across feed vintages.
func signedVolume(r *contracts.RawRecord) (decimal.Decimal, bool) {
	var value float64
	if v, ok := r.PayloadFloat("metered_volume"); ok {
		value = v
	} else if r.HasValue() {
		value = *r.Value
	} else {
		return decimal.Decimal{}, false
	}
	if math.IsNaN(value) {
		return decimal.Decimal{}, false
	}

	d := decimal.NewFromFloat(value)
	ind, _ := r.PayloadString("import_export_ind")
	switch ind {
	case "I":
		d = d.Abs().Neg()
	case "E":
		d = d.Abs()
	}
	return d, true
}

func (a *ELEXON) recordHour(r *contracts.RawRecord) (time.Time, bool) {
	sd, okDate := r.PayloadString("settlement_date")
	sp, okPeriod := r.PayloadInt("settlement_period")
	if okDate && okPeriod {
		if hour, ok := settlementHour(sd, sp); ok {
			return hour, true
		}
		a.log.WithFields(map[string]interface{}{
			"raw_id":            r.ID,
			"settlement_date":   sd,
			"settlement_period": sp,
		}).Warn("Malformed settlement fields, falling back to period_start")
	}
	if r.PeriodStart.IsZero() {
		return time.Time{}, false
	}
	return r.PeriodStart.Truncate(time.Hour), true
}

type elexonGroup struct {
	sum        decimal.Decimal
	dataPoints int
	rawIDs     []int64
}

// settlementPeriodKey identifies one settlement period of one unit,
// independent of which feed delivered the row.
type settlementPeriodKey struct {
	identifier string
	date       string
	period     int
	start      int64
}

func periodKeyOf(r *contracts.RawRecord) settlementPeriodKey {
	key := settlementPeriodKey{identifier: r.Identifier}
	sd, okDate := r.PayloadString("settlement_date")
	sp, okPeriod := r.PayloadInt("settlement_period")
	if okDate && okPeriod {
		key.date, key.period = sd, sp
		return key
	}
	key.start = r.PeriodStart.UnixNano()
	return key
}

// dedupeMeteredRows picks one metered row per settlement period. B1610
// lands through both the API and the CSV feed, and the API row wins when
// a period is covered twice. Balancing rows are never deduplicated.
func dedupeMeteredRows(rows []contracts.RawRecord) map[int64]bool {
	chosen := make(map[settlementPeriodKey]*contracts.RawRecord)
	drop := make(map[int64]bool)
	for i := range rows {
		r := &rows[i]
		if r.SourceType == contracts.SourceTypeBOAVBid || r.SourceType == contracts.SourceTypeBOAVOffer {
			continue
		}
		key := periodKeyOf(r)
		prev, ok := chosen[key]
		if !ok {
			chosen[key] = r
			continue
		}
		if r.SourceType == contracts.SourceTypeAPI && prev.SourceType != contracts.SourceTypeAPI {
			drop[prev.ID] = true
			chosen[key] = r
			continue
		}
		drop[r.ID] = true
	}
	return drop
}

func (a *ELEXON) Transform(win contracts.DayWindow, rows []contracts.RawRecord) []contracts.HourlyCandidate {
	metered := make(map[hourKey]*elexonGroup)
	curtailed := make(map[hourKey]*elexonGroup)
	drop := dedupeMeteredRows(rows)

	for i := range rows {
		r := &rows[i]
		hour, ok := a.recordHour(r)
		if !ok || !win.Contains(hour) {
			continue
		}
		key := hourKey{hour: hour, identifier: r.Identifier}

		switch r.SourceType {
		case contracts.SourceTypeBOAVOffer:
			continue
		case contracts.SourceTypeBOAVBid:
			if !r.HasValue() {
				continue
			}
			g, ok := curtailed[key]
			if !ok {
				g = &elexonGroup{}
				curtailed[key] = g
			}
			g.sum = g.sum.Add(decimal.NewFromFloat(*r.Value).Abs())
			g.rawIDs = append(g.rawIDs, r.ID)
		default:
			if drop[r.ID] {
				continue
			}
			v, ok := signedVolume(r)
			if !ok {
				continue
			}
			g, exists := metered[key]
			if !exists {
				g = &elexonGroup{}
				metered[key] = g
			}
			g.sum = g.sum.Add(v)
			g.dataPoints++
			g.rawIDs = append(g.rawIDs, r.ID)
		}
	}

	cands := make([]contracts.HourlyCandidate, 0, len(metered))
	for key, g := range metered {
		cand := contracts.HourlyCandidate{
			Hour:           key.hour,
			Identifier:     key.identifier,
			MeteredMWh:     contracts.Dec(g.sum),
			GenerationMWh:  g.sum,
			RawDataIDs:     g.rawIDs,
			DataPoints:     g.dataPoints,
			ExpectedPoints: 2,
		}
		if cg, ok := curtailed[key]; ok {
			cand.CurtailedMWh = contracts.Dec(cg.sum)
			cand.GenerationMWh = g.sum.Add(cg.sum)
			cand.RawDataIDs = append(cand.RawDataIDs, cg.rawIDs...)
			delete(curtailed, key)
		}
		cands = append(cands, cand)
	}

	// Fully curtailed hours: balancing bids accepted but no metered
	// output. A record is still produced so curtailment accounting sums.
	for key, cg := range curtailed {
		if cg.sum.IsZero() {
			continue
		}
		cands = append(cands, contracts.HourlyCandidate{
			Hour:           key.hour,
			Identifier:     key.identifier,
			MeteredMWh:     contracts.Dec(decimal.Zero),
			CurtailedMWh:   contracts.Dec(cg.sum),
			GenerationMWh:  cg.sum,
			RawDataIDs:     cg.rawIDs,
			DataPoints:     0,
			ExpectedPoints: 2,
		})
	}

	return sortCandidates(cands)
}
