package contracts

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	src, err := ParseSource("ELEXON")
	require.NoError(t, err)
	assert.Equal(t, SourceELEXON, src)

	_, err = ParseSource("EEX")
	assert.Error(t, err)
}

func TestDailySources_ExcludesMonthlyOnly(t *testing.T) {
	assert.NotContains(t, DailySources(), SourceENERGISTYRELSEN)
	assert.Contains(t, AllSources(), SourceENERGISTYRELSEN)
}

func TestRawRecord_HasValue(t *testing.T) {
	v := 1.5
	nan := math.NaN()

	assert.True(t, (&RawRecord{Value: &v}).HasValue())
	assert.False(t, (&RawRecord{Value: nil}).HasValue())
	assert.False(t, (&RawRecord{Value: &nan}).HasValue())
}

func TestDayWindowFor(t *testing.T) {
	w := DayWindowFor(time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), w.End)

	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(time.Date(2024, 6, 15, 23, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(w.End))
}

func TestMonthWindowFor(t *testing.T) {
	w := MonthWindowFor(time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), w.End)
}

func TestGenerationUnit_OperationalAt(t *testing.T) {
	d := func(y int, m time.Month, day int) *time.Time {
		t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		name string
		unit GenerationUnit
		at   time.Time
		want bool
	}{
		{
			name: "first power date takes precedence over start date",
			unit: GenerationUnit{StartDate: d(2021, 1, 1), FirstPowerDate: d(2021, 6, 1)},
			at:   time.Date(2021, 5, 31, 12, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "operational from first power date",
			unit: GenerationUnit{StartDate: d(2021, 1, 1), FirstPowerDate: d(2021, 6, 1)},
			at:   time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "end date is inclusive",
			unit: GenerationUnit{StartDate: d(2020, 1, 1), EndDate: d(2022, 3, 31)},
			at:   time.Date(2022, 3, 31, 23, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "after end date",
			unit: GenerationUnit{StartDate: d(2020, 1, 1), EndDate: d(2022, 3, 31)},
			at:   time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "no bounds means always operational",
			unit: GenerationUnit{},
			at:   time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.unit.OperationalAt(tt.at))
		})
	}
}

func TestGenerationUnit_PreCommercialAt(t *testing.T) {
	cod := time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC)
	unit := GenerationUnit{CommercialOperationalDate: &cod}

	assert.True(t, unit.PreCommercialAt(time.Date(2021, 8, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, unit.PreCommercialAt(cod))
	assert.False(t, (&GenerationUnit{}).PreCommercialAt(cod))
}
