package billing

import (
	"testing"
	"time"

	"github.com/gridbill/gridbill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allDays() types.ApplicabilityRule {
	return types.ApplicabilityRule{Weekdays: true, Weekends: true, Holidays: true}
}

func maskCount(m mask, n int) int {
	count := 0
	for i := 0; i < n; i++ {
		if m.get(i) {
			count++
		}
	}
	return count
}

func TestRuleMask(t *testing.T) {
	g := dayGrid(t) // 2024-01-01 UTC, hourly

	t.Run("TimeOfDayHalfOpen", func(t *testing.T) {
		rule := allDays()
		rule.PeriodStart = 16 * 60
		rule.PeriodEnd = 21 * 60
		m := ruleMask(g, rule)

		assert.True(t, m.get(16), "start boundary is included")
		assert.True(t, m.get(20))
		assert.False(t, m.get(21), "end boundary is excluded")
		assert.False(t, m.get(15))
		assert.Equal(t, 5, maskCount(m, len(g.Intervals)))
	})

	t.Run("AllDaySentinel", func(t *testing.T) {
		m := ruleMask(g, allDays())
		assert.Equal(t, 24, maskCount(m, len(g.Intervals)))
	})

	t.Run("LastMinuteExcluded", func(t *testing.T) {
		// 23:59 is literal: a 23:00 start qualifies, a 23:59 start would not
		rule := allDays()
		rule.PeriodStart = 22 * 60
		rule.PeriodEnd = 23*60 + 59
		m := ruleMask(g, rule)
		assert.True(t, m.get(22))
		assert.True(t, m.get(23))
	})

	t.Run("AllFlagsFalse", func(t *testing.T) {
		m := ruleMask(g, types.ApplicabilityRule{})
		assert.Equal(t, 0, maskCount(m, len(g.Intervals)))
	})
}

func TestRuleMaskDayClasses(t *testing.T) {
	holidays := map[string]struct{}{"2024-01-01": {}}
	// Mon Jan 1 (holiday), Tue Jan 2 .. Fri Jan 5 (weekdays), Sat Jan 6
	g, err := BuildGrid(civil(2024, 1, 1), civil(2024, 1, 6), "UTC", time.Hour, 31, holidays)
	require.NoError(t, err)

	weekdaysOnly := types.ApplicabilityRule{Weekdays: true}
	holidaysOnly := types.ApplicabilityRule{Holidays: true}
	weekendsOnly := types.ApplicabilityRule{Weekends: true}

	assert.Equal(t, 4*24, maskCount(ruleMask(g, weekdaysOnly), len(g.Intervals)),
		"the holiday Monday does not count as a weekday")
	assert.Equal(t, 24, maskCount(ruleMask(g, holidaysOnly), len(g.Intervals)))
	assert.Equal(t, 24, maskCount(ruleMask(g, weekendsOnly), len(g.Intervals)))
}

func TestRuleMaskAnnualWindow(t *testing.T) {
	octToMay := func() types.ApplicabilityRule {
		r := allDays()
		r.AppliesStart = &types.MonthDay{Month: time.October, Day: 1}
		r.AppliesEnd = &types.MonthDay{Month: time.May, Day: 31}
		return r
	}

	for _, tc := range []struct {
		date time.Time
		want bool
	}{
		{civil(2024, 3, 15), true},
		{civil(2024, 11, 15), true},
		{civil(2024, 12, 31), true},
		{civil(2024, 1, 1), true},
		{civil(2024, 10, 1), true},
		{civil(2024, 5, 31), true},
		{civil(2024, 7, 15), false},
		{civil(2024, 6, 1), false},
		{civil(2024, 9, 30), false},
	} {
		g, err := BuildGrid(tc.date, tc.date, "UTC", time.Hour, 31, nil)
		require.NoError(t, err)
		m := ruleMask(g, octToMay())
		assert.Equal(t, tc.want, m.get(0), "date %s", tc.date.Format("2006-01-02"))
	}
}

func TestChargeMask(t *testing.T) {
	g := dayGrid(t)

	t.Run("NoRulesMeansAlways", func(t *testing.T) {
		m := chargeMask(g, nil)
		assert.Equal(t, 24, maskCount(m, len(g.Intervals)))
	})

	t.Run("ORComposition", func(t *testing.T) {
		morning := allDays()
		morning.PeriodStart = 6 * 60
		morning.PeriodEnd = 9 * 60
		evening := allDays()
		evening.PeriodStart = 17 * 60
		evening.PeriodEnd = 20 * 60

		m := chargeMask(g, []types.ApplicabilityRule{morning, evening})
		assert.Equal(t, 6, maskCount(m, len(g.Intervals)))
		assert.True(t, m.get(7))
		assert.True(t, m.get(18))
		assert.False(t, m.get(12))
	})
}
