package billing

import (
	"fmt"
	"time"

	"github.com/gridbill/gridbill/pkg/types"
)

// DayClass categorises a local calendar day. A holiday overrides the
// weekday/weekend split.
type DayClass uint8

const (
	DayWeekday DayClass = iota
	DayWeekend
	DayHoliday
)

// String implements fmt.Stringer.
func (d DayClass) String() string {
	switch d {
	case DayWeekday:
		return "weekday"
	case DayWeekend:
		return "weekend"
	case DayHoliday:
		return "holiday"
	}
	return fmt.Sprintf("dayclass(%d)", uint8(d))
}

// Interval is one labelled slot of the time grid. Local times are the
// projection of the UTC instants into the customer's zone using the tz rules
// at UTCStart, so fall-back repeats stay distinct by their UTC timestamps
// and spring-forward skips simply have no intervals.
type Interval struct {
	UTCStart   time.Time
	UTCEnd     time.Time
	LocalStart time.Time
	LocalEnd   time.Time
	Class      DayClass
	Month      types.MonthKey
}

// daySpan is a contiguous run of grid intervals sharing a local calendar
// date.
type daySpan struct {
	date  time.Time // local midnight opening the day
	start int       // first interval index
	end   int       // one past the last interval index
	class DayClass
	month types.MonthKey
	// full is the number of intervals in the complete local day, which can
	// differ from end-start only if the grid were ever built on sub-day
	// boundaries; on DST days it reflects the 23h/25h day length.
	full int
}

// monthSpan is a contiguous run of grid intervals assigned to one billing
// month.
type monthSpan struct {
	key   types.MonthKey
	start int
	end   int
	// periodStart/periodEnd are the local civil dates of the complete
	// billing month, independent of how much of it the request covers.
	periodStart time.Time
	periodEnd   time.Time
	coveredDays int
}

// Grid is the shared interval index for one billing computation. Intervals
// are strictly ascending by UTCStart; every other interval-aligned series in
// the computation shares this order.
type Grid struct {
	Step      time.Duration
	Location  *time.Location
	Intervals []Interval

	billingDay int
	days       []daySpan
	months     []monthSpan
}

// BuildGrid constructs the labelled interval index covering the local civil
// dates [start, end] inclusive. Holidays are keyed by "YYYY-MM-DD" local
// date.
func BuildGrid(start, end time.Time, tz string, step time.Duration, billingDay int, holidays map[string]struct{}) (*Grid, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrZoneUnknown, tz, err)
	}
	if step < 5*time.Minute || (24*time.Hour)%step != 0 {
		return nil, fmt.Errorf("%w: %s does not divide a day evenly", ErrInvalidStep, step)
	}
	if billingDay < 1 || billingDay > 31 {
		return nil, fmt.Errorf("%w: billing day %d out of range", types.ErrValidation, billingDay)
	}

	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	cur := time.Date(sy, sm, sd, 0, 0, 0, 0, loc)
	endExcl := time.Date(ey, em, ed, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	if !cur.Before(endExcl) {
		return nil, fmt.Errorf("%w: period end %s before start %s", types.ErrValidation,
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	g := &Grid{
		Step:       step,
		Location:   loc,
		billingDay: billingDay,
	}

	for utc := cur; utc.Before(endExcl); utc = utc.Add(step) {
		local := utc.In(loc)
		y, m, d := local.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)

		i := len(g.Intervals)
		if len(g.days) == 0 || !g.days[len(g.days)-1].date.Equal(midnight) {
			class := classifyDay(midnight, holidays)
			next := midnight.AddDate(0, 0, 1)
			g.days = append(g.days, daySpan{
				date:  midnight,
				start: i,
				class: class,
				month: billingMonthKey(midnight, billingDay),
				full:  int(next.Sub(midnight) / step),
			})
		}
		day := &g.days[len(g.days)-1]
		day.end = i + 1

		if len(g.months) == 0 || g.months[len(g.months)-1].key != day.month {
			ps, pe := billingMonthSpan(day.month, billingDay, loc)
			g.months = append(g.months, monthSpan{
				key:         day.month,
				start:       i,
				periodStart: ps,
				periodEnd:   pe,
			})
		}
		month := &g.months[len(g.months)-1]
		month.end = i + 1
		if day.start == i {
			month.coveredDays++
		}

		g.Intervals = append(g.Intervals, Interval{
			UTCStart:   utc.UTC(),
			UTCEnd:     utc.Add(step).UTC(),
			LocalStart: local,
			LocalEnd:   utc.Add(step).In(loc),
			Class:      day.class,
			Month:      day.month,
		})
	}
	return g, nil
}

// Months returns the billing month keys covered by the grid, in order.
func (g *Grid) Months() []types.MonthKey {
	keys := make([]types.MonthKey, len(g.months))
	for i, m := range g.months {
		keys[i] = m.key
	}
	return keys
}

func classifyDay(midnight time.Time, holidays map[string]struct{}) DayClass {
	if _, ok := holidays[midnight.Format("2006-01-02")]; ok {
		return DayHoliday
	}
	switch midnight.Weekday() {
	case time.Saturday, time.Sunday:
		return DayWeekend
	}
	return DayWeekday
}

// daysInMonth returns the number of days in the given calendar month.
func daysInMonth(year int, month time.Month) int {
	// day 0 of the following month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// effectiveBillingDay clamps the billing day to the calendar month length,
// so billing day 31 closes February on the 28th (or 29th).
func effectiveBillingDay(year int, month time.Month, billingDay int) int {
	if dim := daysInMonth(year, month); billingDay > dim {
		return dim
	}
	return billingDay
}

// billingMonthKey assigns a local civil date to its billing month: the month
// whose closing day (the billing day, clamped) is the last day that contains
// it.
func billingMonthKey(local time.Time, billingDay int) types.MonthKey {
	y, m, d := local.Date()
	key := types.MonthKey{Year: y, Month: m}
	if d > effectiveBillingDay(y, m, billingDay) {
		return key.Next()
	}
	return key
}

// billingMonthSpan returns the first and last local civil dates of the
// billing month identified by key. This is the canonical billing-month
// calendar; grid assignment and day-of-scope accounting both go through it.
func billingMonthSpan(key types.MonthKey, billingDay int, loc *time.Location) (time.Time, time.Time) {
	end := time.Date(key.Year, key.Month,
		effectiveBillingDay(key.Year, key.Month, billingDay), 0, 0, 0, 0, loc)
	prev := key.Prev()
	prevEnd := time.Date(prev.Year, prev.Month,
		effectiveBillingDay(prev.Year, prev.Month, billingDay), 0, 0, 0, 0, loc)
	return prevEnd.AddDate(0, 0, 1), end
}

// daysInBillingMonth counts the calendar days between two local civil dates,
// both inclusive. Computed in UTC so DST shifts cannot skew the count.
func daysInBillingMonth(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s)/(24*time.Hour)) + 1
}
