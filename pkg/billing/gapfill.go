package billing

import (
	"fmt"
	"time"

	"github.com/gridbill/gridbill/pkg/types"
	"github.com/shopspring/decimal"
)

// filledUsage is the grid-aligned usage series after gap repair. All slices
// have exactly one entry per grid interval.
type filledUsage struct {
	energy []decimal.Decimal
	peak   []decimal.Decimal
	filled []bool
}

// GapReport describes the missing intervals repaired by the gap filler.
type GapReport struct {
	TotalMissing int                                 `json:"totalMissing"`
	LongestGap   time.Duration                       `json:"longestGap"`
	ByMonth      map[types.MonthKey]types.GapSummary `json:"byMonth"`
}

// fillGaps aligns the usage records to the grid and repairs missing
// intervals with the requested strategy. Records outside the grid range are
// ignored; duplicate interval starts and records that disagree with the
// grid step are rejected.
func fillGaps(g *Grid, usage []types.UsageInterval, strategy types.GapStrategy) (*filledUsage, GapReport, error) {
	report := GapReport{ByMonth: make(map[types.MonthKey]types.GapSummary)}

	n := len(g.Intervals)
	byStart := make(map[int64]types.UsageInterval, len(usage))
	first := g.Intervals[0].UTCStart
	last := g.Intervals[n-1].UTCEnd
	for _, u := range usage {
		if u.Start.Before(first) || !u.Start.Before(last) {
			continue
		}
		if !u.End.Equal(u.Start.Add(g.Step)) {
			return nil, report, fmt.Errorf("%w: record at %s spans %s, expected %s",
				ErrInconsistentUsage, u.Start.Format(time.RFC3339), u.End.Sub(u.Start), g.Step)
		}
		if err := u.Validate(g.Step); err != nil {
			return nil, report, err
		}
		key := u.Start.Unix()
		if _, ok := byStart[key]; ok {
			return nil, report, fmt.Errorf("%w: duplicate usage interval at %s",
				types.ErrValidation, u.Start.Format(time.RFC3339))
		}
		byStart[key] = u
	}

	f := &filledUsage{
		energy: make([]decimal.Decimal, n),
		peak:   make([]decimal.Decimal, n),
		filled: make([]bool, n),
	}

	present := 0
	for i, iv := range g.Intervals {
		if u, ok := byStart[iv.UTCStart.Unix()]; ok {
			f.energy[i] = u.EnergyKWH
			f.peak[i] = u.PeakKW
			present++
		} else {
			f.filled[i] = true
		}
	}
	if present == 0 {
		return nil, report, fmt.Errorf("%w: no usage observations in requested period", ErrMissingData)
	}
	if present < n {
		if err := repair(f, strategy); err != nil {
			return nil, report, err
		}
	}

	// Gap accounting: maximal runs of absent intervals, reported per billing
	// month of each absent interval.
	run := 0
	flushRun := func(endIdx int) {
		if run == 0 {
			return
		}
		if d := time.Duration(run) * g.Step; d > report.LongestGap {
			report.LongestGap = d
		}
		for j := endIdx - run; j < endIdx; j++ {
			key := g.Intervals[j].Month
			s := report.ByMonth[key]
			s.MissingIntervals++
			if d := time.Duration(run) * g.Step; d > s.LongestGap {
				s.LongestGap = d
			}
			report.ByMonth[key] = s
		}
		report.TotalMissing += run
		run = 0
	}
	for i := 0; i < n; i++ {
		if f.filled[i] {
			run++
		} else {
			flushRun(i)
		}
	}
	flushRun(n)

	return f, report, nil
}

// repair fills the absent entries of f in place.
func repair(f *filledUsage, strategy types.GapStrategy) error {
	n := len(f.filled)
	switch strategy {
	case types.GapExtrapolateLast:
		// forward fill, then backfill the leading gap from the first
		// observation
		lastSeen := -1
		for i := 0; i < n; i++ {
			if !f.filled[i] {
				lastSeen = i
				continue
			}
			if lastSeen >= 0 {
				f.energy[i] = f.energy[lastSeen]
				f.peak[i] = f.peak[lastSeen]
			}
		}
		firstSeen := 0
		for firstSeen < n && f.filled[firstSeen] {
			firstSeen++
		}
		for i := 0; i < firstSeen; i++ {
			f.energy[i] = f.energy[firstSeen]
			f.peak[i] = f.peak[firstSeen]
		}
	case types.GapLinearInterpolate:
		i := 0
		for i < n {
			if !f.filled[i] {
				i++
				continue
			}
			gapStart := i
			for i < n && f.filled[i] {
				i++
			}
			gapEnd := i // one past the gap
			left, right := gapStart-1, gapEnd
			switch {
			case left < 0 && right >= n:
				// unreachable: fillGaps errors when nothing is present
				return fmt.Errorf("%w: cannot interpolate an empty series", ErrMissingData)
			case left < 0:
				for j := gapStart; j < gapEnd; j++ {
					f.energy[j] = f.energy[right]
					f.peak[j] = f.peak[right]
				}
			case right >= n:
				for j := gapStart; j < gapEnd; j++ {
					f.energy[j] = f.energy[left]
					f.peak[j] = f.peak[left]
				}
			default:
				span := decimal.NewFromInt(int64(gapEnd - gapStart + 1))
				de := f.energy[right].Sub(f.energy[left])
				dp := f.peak[right].Sub(f.peak[left])
				for j := gapStart; j < gapEnd; j++ {
					// multiply before dividing so exact steps stay exact
					pos := decimal.NewFromInt(int64(j - gapStart + 1))
					f.energy[j] = f.energy[left].Add(de.Mul(pos).Div(span))
					f.peak[j] = f.peak[left].Add(dp.Mul(pos).Div(span))
				}
			}
		}
	default:
		return fmt.Errorf("%w: unknown gap strategy %q", types.ErrValidation, strategy)
	}
	return nil
}
