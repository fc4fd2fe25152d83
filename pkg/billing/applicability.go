package billing

import (
	"github.com/gridbill/gridbill/pkg/types"
)

// ruleMask evaluates a single applicability rule against every grid
// interval.
func ruleMask(g *Grid, rule types.ApplicabilityRule) mask {
	m := newMask(len(g.Intervals))
	for i, iv := range g.Intervals {
		if ruleMatches(rule, iv) {
			m.set(i)
		}
	}
	return m
}

// chargeMask OR-composes the masks of a charge's rules. A charge with no
// rules applies everywhere.
func chargeMask(g *Grid, rules []types.ApplicabilityRule) mask {
	if len(rules) == 0 {
		return allMask(len(g.Intervals))
	}
	m := newMask(len(g.Intervals))
	for _, r := range rules {
		m.or(ruleMask(g, r))
	}
	return m
}

func ruleMatches(rule types.ApplicabilityRule, iv Interval) bool {
	// day-class flag
	switch iv.Class {
	case DayWeekday:
		if !rule.Weekdays {
			return false
		}
	case DayWeekend:
		if !rule.Weekends {
			return false
		}
	case DayHoliday:
		if !rule.Holidays {
			return false
		}
	}

	// time-of-day window, half-open on the local start
	if !rule.AllDay() {
		minutes := types.TimeOfDay(iv.LocalStart.Hour()*60 + iv.LocalStart.Minute())
		if minutes < rule.PeriodStart || minutes >= rule.PeriodEnd {
			return false
		}
	}

	// annual month/day window, inclusive on both ends; may wrap the year
	if rule.AppliesStart != nil {
		ord := int(iv.LocalStart.Month())*100 + iv.LocalStart.Day()
		s, e := rule.AppliesStart.Ordinal(), rule.AppliesEnd.Ordinal()
		if s <= e {
			if ord < s || ord > e {
				return false
			}
		} else if ord < s && ord > e {
			return false
		}
	}
	return true
}
