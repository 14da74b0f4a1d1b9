package adapters

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energyexe/harmonizer/internal/contracts"
)

var testDay = contracts.DayWindowFor(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))

func rawRow(id int64, source, sourceType, identifier string, start time.Time, value float64) contracts.RawRecord {
	return contracts.RawRecord{
		ID:          id,
		Source:      source,
		SourceType:  sourceType,
		Identifier:  identifier,
		PeriodStart: start,
		PeriodEnd:   start.Add(15 * time.Minute),
		Value:       &value,
		Unit:        "MW",
	}
}

func TestENTSOE_FifteenMinuteAveraging(t *testing.T) {
	a := NewENTSOE()
	hour := testDay.Start.Add(6 * time.Hour)

	rows := []contracts.RawRecord{
		rawRow(1, contracts.SourceENTSOE, "api", "48W_A", hour, 10),
		rawRow(2, contracts.SourceENTSOE, "api", "48W_A", hour.Add(15*time.Minute), 12),
		rawRow(3, contracts.SourceENTSOE, "api", "48W_A", hour.Add(30*time.Minute), 11),
		rawRow(4, contracts.SourceENTSOE, "api", "48W_A", hour.Add(45*time.Minute), 13),
	}

	cands := a.Transform(testDay, rows)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.True(t, decimal.NewFromFloat(11.5).Equal(c.GenerationMWh), "got %s", c.GenerationMWh)
	assert.Equal(t, 4, c.DataPoints)
	assert.Equal(t, 4, c.ExpectedPoints)
	assert.Equal(t, ResolutionPT15M, c.Metadata["resolution"])
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, c.RawDataIDs)
}

func TestENTSOE_CapacityHintKeptAsMetadata(t *testing.T) {
	a := NewENTSOE()
	hour := testDay.Start.Add(6 * time.Hour)

	withCap := rawRow(1, contracts.SourceENTSOE, "api", "48W_A", hour, 10)
	withCap.Payload = map[string]any{"installed_capacity_mw": 340.5}
	rows := []contracts.RawRecord{
		withCap,
		rawRow(2, contracts.SourceENTSOE, "api", "48W_A", hour.Add(30*time.Minute), 14),
	}

	cands := a.Transform(testDay, rows)
	require.Len(t, cands, 1)
	assert.Equal(t, 340.5, cands[0].Metadata["raw_capacity_mw"])
}

func TestENTSOE_ThirtyMinuteAveraging(t *testing.T) {
	a := NewENTSOE()
	hour := testDay.Start.Add(9 * time.Hour)

	rows := []contracts.RawRecord{
		rawRow(5, contracts.SourceENTSOE, "api", "48W_B", hour, 10),
		rawRow(6, contracts.SourceENTSOE, "api", "48W_B", hour.Add(30*time.Minute), 14),
	}

	cands := a.Transform(testDay, rows)
	require.Len(t, cands, 1)
	assert.True(t, decimal.NewFromFloat(12).Equal(cands[0].GenerationMWh))
	assert.Equal(t, ResolutionPT30M, cands[0].Metadata["resolution"])
	assert.Equal(t, 2, cands[0].ExpectedPoints)
}

func TestENTSOE_DirectHourlyValue(t *testing.T) {
	a := NewENTSOE()
	hour := testDay.Start.Add(3 * time.Hour)

	cands := a.Transform(testDay, []contracts.RawRecord{
		rawRow(7, contracts.SourceENTSOE, "api", "48W_C", hour, 9.5),
	})
	require.Len(t, cands, 1)
	assert.True(t, decimal.NewFromFloat(9.5).Equal(cands[0].GenerationMWh))
	assert.Equal(t, ResolutionPT60M, cands[0].Metadata["resolution"])
	assert.Equal(t, 1, cands[0].DataPoints)
}

func TestENTSOE_NullAndNaNExcludedBeforeAveraging(t *testing.T) {
	a := NewENTSOE()
	hour := testDay.Start.Add(12 * time.Hour)

	nullRow := rawRow(8, contracts.SourceENTSOE, "api", "48W_D", hour, 0)
	nullRow.Value = nil

	rows := []contracts.RawRecord{
		nullRow,
		rawRow(9, contracts.SourceENTSOE, "api", "48W_D", hour.Add(15*time.Minute), 8),
		rawRow(10, contracts.SourceENTSOE, "api", "48W_D", hour.Add(30*time.Minute), 10),
	}

	cands := a.Transform(testDay, rows)
	require.Len(t, cands, 1)

	// Two valid readings left, so the group averages as 30-minute data.
	assert.True(t, decimal.NewFromFloat(9).Equal(cands[0].GenerationMWh))
	assert.Equal(t, 2, cands[0].DataPoints)
	assert.Equal(t, ResolutionPT30M, cands[0].Metadata["resolution"])
}

func TestENTSOE_EmptyGroupDropped(t *testing.T) {
	a := NewENTSOE()
	hour := testDay.Start.Add(1 * time.Hour)

	nullRow := rawRow(11, contracts.SourceENTSOE, "api", "48W_E", hour, 0)
	nullRow.Value = nil

	cands := a.Transform(testDay, []contracts.RawRecord{nullRow})
	assert.Empty(t, cands)
}

func TestENTSOE_ConsumptionAttachedToGenerationHour(t *testing.T) {
	a := NewENTSOE()
	hour := testDay.Start.Add(14 * time.Hour)

	rows := []contracts.RawRecord{
		rawRow(20, contracts.SourceENTSOE, "api", "48W_F", hour, 50),
		rawRow(21, contracts.SourceENTSOE, contracts.SourceTypeAPIConsumption, "48W_F", hour, 1.25),
	}

	cands := a.Transform(testDay, rows)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.True(t, decimal.NewFromFloat(50).Equal(c.GenerationMWh))
	require.NotNil(t, c.ConsumptionMWh)
	assert.True(t, decimal.NewFromFloat(1.25).Equal(*c.ConsumptionMWh))
	assert.ElementsMatch(t, []int64{20, 21}, c.RawDataIDs)
}

func TestENTSOE_ConsumptionOnlyHourEmitsZeroGeneration(t *testing.T) {
	a := NewENTSOE()
	hour := testDay.Start.Add(2 * time.Hour)

	cands := a.Transform(testDay, []contracts.RawRecord{
		rawRow(22, contracts.SourceENTSOE, contracts.SourceTypeExcelConsumption, "48W_G", hour, 0.75),
	})
	require.Len(t, cands, 1)

	c := cands[0]
	assert.True(t, c.GenerationMWh.IsZero())
	require.NotNil(t, c.ConsumptionMWh)
	assert.True(t, decimal.NewFromFloat(0.75).Equal(*c.ConsumptionMWh))
}

func TestENTSOE_RowsOutsideWindowIgnored(t *testing.T) {
	a := NewENTSOE()

	cands := a.Transform(testDay, []contracts.RawRecord{
		rawRow(23, contracts.SourceENTSOE, "api", "48W_H", testDay.End, 42),
		rawRow(24, contracts.SourceENTSOE, "api", "48W_H", testDay.Start.Add(-time.Hour), 42),
	})
	assert.Empty(t, cands)
}
