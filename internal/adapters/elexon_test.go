package adapters

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/logger"
)

func elexonRow(id int64, sourceType, identifier, settlementDate string, period int, volume float64, ind string) contracts.RawRecord {
	r := contracts.RawRecord{
		ID:         id,
		Source:     contracts.SourceELEXON,
		SourceType: sourceType,
		Identifier: identifier,
		Value:      &volume,
		Unit:       "MWh",
		Payload: map[string]any{
			"settlement_date":   settlementDate,
			"settlement_period": float64(period),
			"metered_volume":    volume,
		},
	}
	if ind != "" {
		r.Payload["import_export_ind"] = ind
	}
	return r
}

func TestSettlementHour(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		period int
		want   time.Time
	}{
		{
			name:   "BST summer day period 1 starts previous UTC day",
			date:   "2024-06-15",
			period: 1,
			want:   time.Date(2024, time.June, 14, 23, 0, 0, 0, time.UTC),
		},
		{
			name:   "fall-back day period 1",
			date:   "2024-10-27",
			period: 1,
			want:   time.Date(2024, time.October, 26, 23, 0, 0, 0, time.UTC),
		},
		{
			name:   "fall-back day has 50 periods",
			date:   "2024-10-27",
			period: 50,
			want:   time.Date(2024, time.October, 27, 23, 0, 0, 0, time.UTC),
		},
		{
			name:   "winter day aligned with UTC",
			date:   "2024-01-15",
			period: 3,
			want:   time.Date(2024, time.January, 15, 1, 0, 0, 0, time.UTC),
		},
		{
			name:   "compact date format",
			date:   "20240615",
			period: 1,
			want:   time.Date(2024, time.June, 14, 23, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := settlementHour(tt.date, tt.period)
			require.True(t, ok)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}

	t.Run("garbage date rejected", func(t *testing.T) {
		_, ok := settlementHour("not-a-date", 1)
		assert.False(t, ok)
	})
}

func TestELEXON_MeteredPlusCurtailment(t *testing.T) {
	a := NewELEXON(logger.Nop())
	day := contracts.DayWindowFor(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))

	rows := []contracts.RawRecord{
		elexonRow(1, "b1610", "T_WF-1", "2024-01-15", 21, 5, "E"), // 10:00
		elexonRow(2, "b1610", "T_WF-1", "2024-01-15", 22, 5, "E"), // 10:30
		elexonRow(3, contracts.SourceTypeBOAVBid, "T_WF-1", "2024-01-15", 21, -2, ""),
	}

	cands := a.Transform(day, rows)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC), c.Hour)
	require.NotNil(t, c.MeteredMWh)
	require.NotNil(t, c.CurtailedMWh)
	assert.True(t, decimal.NewFromFloat(10).Equal(*c.MeteredMWh))
	assert.True(t, decimal.NewFromFloat(2).Equal(*c.CurtailedMWh))
	assert.True(t, decimal.NewFromFloat(12).Equal(c.GenerationMWh))
	assert.Equal(t, 2, c.DataPoints)
	assert.Equal(t, 2, c.ExpectedPoints)
	assert.ElementsMatch(t, []int64{1, 2, 3}, c.RawDataIDs)
}

func TestELEXON_DualFeedPeriodsCountedOnce(t *testing.T) {
	a := NewELEXON(logger.Nop())
	day := contracts.DayWindowFor(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))

	// B1610 for the same unit arrives through both feeds: periods 1 and
	// 2 each carry an api row and a csv duplicate (csv listed first so
	// arrival order cannot decide), period 3 is csv-only.
	rows := []contracts.RawRecord{
		elexonRow(1, contracts.SourceTypeCSV, "T_WF-9", "2024-01-15", 1, 5, "E"),
		elexonRow(2, contracts.SourceTypeAPI, "T_WF-9", "2024-01-15", 1, 5, "E"),
		elexonRow(3, contracts.SourceTypeAPI, "T_WF-9", "2024-01-15", 2, 5, "E"),
		elexonRow(4, contracts.SourceTypeCSV, "T_WF-9", "2024-01-15", 2, 5, "E"),
		elexonRow(5, contracts.SourceTypeCSV, "T_WF-9", "2024-01-15", 3, 4, "E"),
	}

	cands := a.Transform(day, rows)
	require.Len(t, cands, 2)

	first := cands[0] // 00:00Z, periods 1+2
	assert.True(t, decimal.NewFromFloat(10).Equal(*first.MeteredMWh), "got %s", first.MeteredMWh)
	assert.Equal(t, 2, first.DataPoints)
	assert.ElementsMatch(t, []int64{2, 3}, first.RawDataIDs)

	second := cands[1] // 01:00Z, csv-only period survives
	assert.True(t, decimal.NewFromFloat(4).Equal(*second.MeteredMWh))
	assert.Equal(t, 1, second.DataPoints)
	assert.ElementsMatch(t, []int64{5}, second.RawDataIDs)
}

func TestELEXON_ImportIndicatorForcesNegativeSign(t *testing.T) {
	a := NewELEXON(logger.Nop())
	day := contracts.DayWindowFor(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))

	// Stored as positive but flagged import; stored negative but flagged export.
	rows := []contracts.RawRecord{
		elexonRow(1, "b1610", "T_WF-2", "2024-01-15", 11, 3, "I"),
		elexonRow(2, "b1610", "T_WF-2", "2024-01-15", 12, -7, "E"),
	}

	cands := a.Transform(day, rows)
	require.Len(t, cands, 1)
	assert.True(t, decimal.NewFromFloat(4).Equal(cands[0].GenerationMWh), "got %s", cands[0].GenerationMWh)
}

func TestELEXON_FullyCurtailedHour(t *testing.T) {
	a := NewELEXON(logger.Nop())
	day := contracts.DayWindowFor(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))

	cands := a.Transform(day, []contracts.RawRecord{
		elexonRow(9, contracts.SourceTypeBOAVBid, "T_WF-3", "2024-01-15", 5, -4.5, ""),
	})
	require.Len(t, cands, 1)

	c := cands[0]
	require.NotNil(t, c.MeteredMWh)
	assert.True(t, c.MeteredMWh.IsZero())
	require.NotNil(t, c.CurtailedMWh)
	assert.True(t, decimal.NewFromFloat(4.5).Equal(*c.CurtailedMWh))
	assert.True(t, decimal.NewFromFloat(4.5).Equal(c.GenerationMWh))
	assert.Equal(t, 0, c.DataPoints)
}

func TestELEXON_OutputFilteredToDayWindow(t *testing.T) {
	a := NewELEXON(logger.Nop())

	// Processing 2024-06-15: the fetch window is padded an hour early,
	// so rows belonging to settlement day 2024-06-15 period 1 (23:00Z on
	// the 14th) must be dropped, while period 3 (00:00Z on the 15th) stays.
	day := contracts.DayWindowFor(time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))

	rows := []contracts.RawRecord{
		elexonRow(1, "b1610", "T_WF-4", "2024-06-15", 1, 6, "E"), // 23:00Z on the 14th
		elexonRow(2, "b1610", "T_WF-4", "2024-06-15", 3, 8, "E"), // 00:00Z on the 15th
	}

	cands := a.Transform(day, rows)
	require.Len(t, cands, 1)
	assert.Equal(t, time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC), cands[0].Hour)
	assert.True(t, decimal.NewFromFloat(8).Equal(cands[0].GenerationMWh))
}

func TestELEXON_FetchSpecPadsWindowBackwards(t *testing.T) {
	a := NewELEXON(logger.Nop())
	spec := a.FetchSpec()
	assert.Equal(t, time.Hour, spec.PadStart)
	assert.Contains(t, spec.ExcludeSourceTypes, contracts.SourceTypeBOAVOffer)
}
