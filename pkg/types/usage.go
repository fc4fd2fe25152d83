package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageInterval is one atomic usage observation: energy consumed over
// [Start, End) in kWh and the instantaneous peak demand within the interval
// in kW. Timestamps are UTC instants.
type UsageInterval struct {
	Start     time.Time       `json:"intervalStart"`
	End       time.Time       `json:"intervalEnd"`
	EnergyKWH decimal.Decimal `json:"energyKWH"`
	PeakKW    decimal.Decimal `json:"peakKW"`
}

// Validate checks the observation against the expected cadence.
func (u UsageInterval) Validate(step time.Duration) error {
	if u.Start.IsZero() || u.End.IsZero() {
		return invalidf("usage interval missing timestamps")
	}
	if !u.End.Equal(u.Start.Add(step)) {
		return invalidf("usage interval at %s is not %s long", u.Start.Format(time.RFC3339), step)
	}
	if u.EnergyKWH.IsNegative() {
		return invalidf("usage interval at %s has negative energy %s", u.Start.Format(time.RFC3339), u.EnergyKWH)
	}
	if u.PeakKW.IsNegative() {
		return invalidf("usage interval at %s has negative peak demand %s", u.Start.Format(time.RFC3339), u.PeakKW)
	}
	return nil
}

// GapStrategy selects how missing usage intervals are repaired before
// charges are applied.
type GapStrategy string

const (
	// GapExtrapolateLast repeats the last preceding observation; leading
	// gaps take the first following observation.
	GapExtrapolateLast GapStrategy = "extrapolate_last"
	// GapLinearInterpolate interpolates linearly between the nearest present
	// neighbours; single-sided gaps repeat the known end.
	GapLinearInterpolate GapStrategy = "linear_interpolate"
)

// Validate checks the strategy is a known value.
func (g GapStrategy) Validate() error {
	switch g {
	case GapExtrapolateLast, GapLinearInterpolate:
		return nil
	}
	return invalidf("invalid gap strategy %q", string(g))
}
