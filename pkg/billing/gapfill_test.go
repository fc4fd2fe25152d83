package billing

import (
	"testing"
	"time"

	"github.com/gridbill/gridbill/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hourlyUsage builds one usage record per listed hour of 2024-01-01 UTC, with
// energy and peak both set to the given value.
func hourlyUsage(values map[int]string) []types.UsageInterval {
	var out []types.UsageInterval
	for h, v := range values {
		start := time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)
		d := decimal.RequireFromString(v)
		out = append(out, types.UsageInterval{
			Start: start, End: start.Add(time.Hour),
			EnergyKWH: d, PeakKW: d,
		})
	}
	return out
}

func dayGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := BuildGrid(civil(2024, 1, 1), civil(2024, 1, 1), "UTC", time.Hour, 31, nil)
	require.NoError(t, err)
	require.Len(t, g.Intervals, 24)
	return g
}

func TestFillGaps(t *testing.T) {
	g := dayGrid(t)

	t.Run("Complete", func(t *testing.T) {
		values := make(map[int]string, 24)
		for h := 0; h < 24; h++ {
			values[h] = "2"
		}
		f, report, err := fillGaps(g, hourlyUsage(values), types.GapExtrapolateLast)
		require.NoError(t, err)
		assert.Equal(t, 0, report.TotalMissing)
		for i := 0; i < 24; i++ {
			assert.False(t, f.filled[i])
			assert.True(t, f.energy[i].Equal(decimal.NewFromInt(2)))
		}
	})

	t.Run("ExtrapolateLast", func(t *testing.T) {
		// hours 0-1 missing (backfilled), 2-5 present, 6-9 missing
		// (forward-filled), 10 present, rest missing
		f, report, err := fillGaps(g, hourlyUsage(map[int]string{
			2: "1", 3: "2", 4: "3", 5: "4", 10: "9",
		}), types.GapExtrapolateLast)
		require.NoError(t, err)

		assert.True(t, f.energy[0].Equal(decimal.NewFromInt(1)), "leading gap takes first observation")
		assert.True(t, f.energy[1].Equal(decimal.NewFromInt(1)))
		assert.True(t, f.energy[7].Equal(decimal.NewFromInt(4)), "interior gap repeats last observation")
		assert.True(t, f.energy[23].Equal(decimal.NewFromInt(9)), "trailing gap repeats last observation")
		for _, i := range []int{0, 1, 6, 9, 23} {
			assert.True(t, f.filled[i], "hour %d should be flagged filled", i)
		}
		for _, i := range []int{2, 5, 10} {
			assert.False(t, f.filled[i], "hour %d should not be flagged", i)
		}

		assert.Equal(t, 19, report.TotalMissing)
		assert.Equal(t, 13*time.Hour, report.LongestGap, "trailing run 11..23")
		assert.Equal(t, types.GapSummary{MissingIntervals: 19, LongestGap: 13 * time.Hour},
			report.ByMonth[types.MonthKey{Year: 2024, Month: time.January}])
	})

	t.Run("LinearInterpolate", func(t *testing.T) {
		// gap of two between 2 and 5: positions 3,4 interpolate 2 -> 8
		f, _, err := fillGaps(g, func() []types.UsageInterval {
			values := map[int]string{2: "2", 5: "8"}
			for h := 0; h < 24; h++ {
				if h != 3 && h != 4 {
					if _, ok := values[h]; !ok {
						values[h] = "2"
					}
				}
			}
			return hourlyUsage(values)
		}(), types.GapLinearInterpolate)
		require.NoError(t, err)

		assert.True(t, f.energy[3].Equal(decimal.NewFromInt(4)), "got %s", f.energy[3])
		assert.True(t, f.energy[4].Equal(decimal.NewFromInt(6)), "got %s", f.energy[4])
	})

	t.Run("LinearInterpolateSingleSided", func(t *testing.T) {
		f, _, err := fillGaps(g, hourlyUsage(map[int]string{5: "3", 6: "7"}), types.GapLinearInterpolate)
		require.NoError(t, err)
		assert.True(t, f.energy[0].Equal(decimal.NewFromInt(3)), "leading gap repeats the known right end")
		assert.True(t, f.energy[23].Equal(decimal.NewFromInt(7)), "trailing gap repeats the known left end")
	})

	t.Run("NoObservations", func(t *testing.T) {
		_, _, err := fillGaps(g, nil, types.GapExtrapolateLast)
		assert.ErrorIs(t, err, ErrMissingData)
	})

	t.Run("OutOfRangeIgnored", func(t *testing.T) {
		usage := hourlyUsage(map[int]string{3: "1"})
		before := types.UsageInterval{
			Start:     time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC),
			End:       time.Date(2023, 12, 31, 11, 0, 0, 0, time.UTC),
			EnergyKWH: decimal.NewFromInt(99),
			PeakKW:    decimal.NewFromInt(99),
		}
		f, _, err := fillGaps(g, append(usage, before), types.GapExtrapolateLast)
		require.NoError(t, err)
		assert.True(t, f.energy[0].Equal(decimal.NewFromInt(1)), "out-of-range record must not leak in")
	})

	t.Run("DuplicateStart", func(t *testing.T) {
		usage := append(hourlyUsage(map[int]string{3: "1"}), hourlyUsage(map[int]string{3: "2"})...)
		_, _, err := fillGaps(g, usage, types.GapExtrapolateLast)
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("WrongSpan", func(t *testing.T) {
		start := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
		usage := []types.UsageInterval{{
			Start: start, End: start.Add(30 * time.Minute),
			EnergyKWH: decimal.NewFromInt(1), PeakKW: decimal.NewFromInt(1),
		}}
		_, _, err := fillGaps(g, usage, types.GapExtrapolateLast)
		assert.ErrorIs(t, err, ErrInconsistentUsage)
	})

	t.Run("UnknownStrategy", func(t *testing.T) {
		_, _, err := fillGaps(g, hourlyUsage(map[int]string{3: "1"}), types.GapStrategy("bogus"))
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}
