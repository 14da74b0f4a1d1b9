package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// HourlyCandidate is the intermediate representation a source adapter
// produces for one (hour, identifier) pair. Values stay in exact decimal
// form until the assembler rounds at the persistence boundary.
type HourlyCandidate struct {
	Hour           time.Time // UTC, truncated to the hour
	Identifier     string    // source-native unit code
	GenerationMWh  decimal.Decimal
	MeteredMWh     *decimal.Decimal // ELEXON: delivered-to-grid portion
	CurtailedMWh   *decimal.Decimal // ELEXON: operator-instructed reduction
	ConsumptionMWh *decimal.Decimal // ENTSOE: attached consumption reading
	RawDataIDs     []int64
	DataPoints     int
	ExpectedPoints int
	Metadata       map[string]any
}

// Quality flags assigned to canonical hourly rows.
const (
	QualityHigh   = "HIGH"
	QualityMedium = "MEDIUM"
	QualityLow    = "LOW"
	QualityPoor   = "POOR"
)

// HourlyRecord is one fully assembled canonical row, ready to persist.
type HourlyRecord struct {
	Hour             time.Time
	Identifier       string // kept for diagnostics; not a table column
	GenerationUnitID *int64
	WindfarmID       *int64
	GenerationMWh    decimal.Decimal
	CapacityMW       *decimal.Decimal
	CapacityFactor   *decimal.Decimal
	// Source-embedded capacity figures, kept for reference; the unit
	// directory owns the capacity used for the stored capacity_factor.
	RawCapacityMW     *decimal.Decimal
	RawCapacityFactor *decimal.Decimal
	MeteredMWh        *decimal.Decimal
	CurtailedMWh      *decimal.Decimal
	ConsumptionMWh    *decimal.Decimal
	RawDataIDs        []int64
	QualityFlag       string
	QualityScore      decimal.Decimal
	Completeness      decimal.Decimal
	Source            string
	SourceResolution  string
}

// DayWindow is a half-open UTC day interval [Start, End).
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// DayWindowFor builds the UTC day window containing date.
func DayWindowFor(date time.Time) DayWindow {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return DayWindow{Start: start, End: start.AddDate(0, 0, 1)}
}

// MonthWindowFor builds the UTC month window containing date.
func MonthWindowFor(date time.Time) DayWindow {
	start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	return DayWindow{Start: start, End: start.AddDate(0, 1, 0)}
}

// Contains reports whether t falls inside the window.
func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Dec is a convenience pointer constructor for optional decimal fields.
func Dec(d decimal.Decimal) *decimal.Decimal {
	return &d
}
