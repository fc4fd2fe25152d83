package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ErrValidation is wrapped by every error returned from a Validate method so
// callers can distinguish bad input from internal failures.
var ErrValidation = errors.New("validation failed")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// maxRateDecimals is the maximum number of fractional digits accepted for
// monetary rates and amounts.
const maxRateDecimals = 5

// TimeOfDay is a local wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// MinutesPerDay is the length of a nominal (non-DST) day in minutes.
const MinutesPerDay = 24 * 60

// ParseTimeOfDay parses an "HH:MM" string into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, invalidf("invalid time of day %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, invalidf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// String formats the time of day as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MonthDay is a (month, day) pair; the year is deliberately absent so that
// applicability windows repeat annually.
type MonthDay struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// ParseMonthDay parses a "YYYY-MM-DD" date, discarding the year.
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return MonthDay{}, invalidf("invalid date %q: %v", s, err)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// String formats the month/day with the sentinel year 2000, matching the
// tariff YAML on-disk form. Year 2000 is a leap year so Feb 29 survives.
func (md MonthDay) String() string {
	return fmt.Sprintf("2000-%02d-%02d", int(md.Month), md.Day)
}

// Ordinal returns a comparable encoding of the month/day (month*100 + day).
func (md MonthDay) Ordinal() int {
	return int(md.Month)*100 + md.Day
}

// Validate checks that the month/day names a real calendar date. Feb 29 is
// accepted since the window repeats across leap years.
func (md MonthDay) Validate() error {
	if md.Month < time.January || md.Month > time.December {
		return invalidf("month %d out of range", md.Month)
	}
	// normalize against the leap year 2000 so Feb 29 passes
	t := time.Date(2000, md.Month, md.Day, 0, 0, 0, 0, time.UTC)
	if t.Month() != md.Month || t.Day() != md.Day {
		return invalidf("day %d does not exist in %s", md.Day, md.Month)
	}
	return nil
}

// ApplicabilityRule restricts when a charge is in force. An interval
// qualifies when its local start time falls in [PeriodStart, PeriodEnd), its
// local (month, day) falls inside the annual window, and the flag for its
// day class is set.
//
// PeriodStart == PeriodEnd == 00:00 is the all-day sentinel. A window with
// AppliesEnd earlier than AppliesStart wraps the year boundary (e.g. Oct 1
// through May 31). Either both date bounds are present or neither is.
type ApplicabilityRule struct {
	PeriodStart TimeOfDay `json:"periodStartTimeLocal"`
	PeriodEnd   TimeOfDay `json:"periodEndTimeLocal"`

	AppliesStart *MonthDay `json:"appliesStartMD,omitempty"`
	AppliesEnd   *MonthDay `json:"appliesEndMD,omitempty"`

	Weekdays bool `json:"appliesWeekdays"`
	Weekends bool `json:"appliesWeekends"`
	Holidays bool `json:"appliesHolidays"`
}

// AllDay reports whether the rule places no time-of-day constraint.
func (r ApplicabilityRule) AllDay() bool {
	return r.PeriodStart == 0 && r.PeriodEnd == 0
}

// Validate checks the rule invariants.
func (r ApplicabilityRule) Validate() error {
	if r.PeriodStart < 0 || r.PeriodStart >= MinutesPerDay {
		return invalidf("period start %s out of range", r.PeriodStart)
	}
	if r.PeriodEnd < 0 || r.PeriodEnd >= MinutesPerDay {
		return invalidf("period end %s out of range", r.PeriodEnd)
	}
	if !r.AllDay() && r.PeriodEnd <= r.PeriodStart {
		return invalidf("period end %s must be after period start %s", r.PeriodEnd, r.PeriodStart)
	}
	if (r.AppliesStart == nil) != (r.AppliesEnd == nil) {
		return invalidf("applies start and end dates must both be set or both be absent")
	}
	if r.AppliesStart != nil {
		if err := r.AppliesStart.Validate(); err != nil {
			return fmt.Errorf("applies start: %w", err)
		}
		if err := r.AppliesEnd.Validate(); err != nil {
			return fmt.Errorf("applies end: %w", err)
		}
	}
	return nil
}

// PeakType selects the scope over which a demand charge finds its peak.
type PeakType string

const (
	PeakTypeDaily   PeakType = "daily"
	PeakTypeMonthly PeakType = "monthly"
)

// Validate checks the peak type is a known value.
func (p PeakType) Validate() error {
	switch p {
	case PeakTypeDaily, PeakTypeMonthly:
		return nil
	}
	return invalidf("invalid peak type %q", string(p))
}

// CustomerChargeType selects how a customer charge accrues.
type CustomerChargeType string

const (
	CustomerChargeDaily   CustomerChargeType = "daily"
	CustomerChargeMonthly CustomerChargeType = "monthly"
)

// Validate checks the charge type is a known value.
func (c CustomerChargeType) Validate() error {
	switch c {
	case CustomerChargeDaily, CustomerChargeMonthly:
		return nil
	}
	return invalidf("invalid customer charge type %q", string(c))
}

// EnergyCharge is a volumetric charge in dollars per kWh. It applies to an
// interval whenever any of its rules match; no rules means always.
type EnergyCharge struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	RatePerKWH decimal.Decimal     `json:"ratePerKWH"`
	Rules      []ApplicabilityRule `json:"rules,omitempty"`
}

// Validate checks the charge invariants.
func (c EnergyCharge) Validate() error {
	if c.Name == "" {
		return invalidf("energy charge missing name")
	}
	if err := validateRate(c.RatePerKWH); err != nil {
		return fmt.Errorf("energy charge %q rate: %w", c.Name, err)
	}
	for i, r := range c.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("energy charge %q rule %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// DemandCharge is a charge in dollars per kW applied to the peak demand
// observed within each scope (local day or billing month).
type DemandCharge struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	RatePerKW decimal.Decimal     `json:"ratePerKW"`
	PeakType  PeakType            `json:"peakType"`
	Rules     []ApplicabilityRule `json:"rules,omitempty"`
}

// Validate checks the charge invariants.
func (c DemandCharge) Validate() error {
	if c.Name == "" {
		return invalidf("demand charge missing name")
	}
	if err := validateRate(c.RatePerKW); err != nil {
		return fmt.Errorf("demand charge %q rate: %w", c.Name, err)
	}
	if err := c.PeakType.Validate(); err != nil {
		return fmt.Errorf("demand charge %q: %w", c.Name, err)
	}
	for i, r := range c.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("demand charge %q rule %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// CustomerCharge is a flat recurring charge. It carries no applicability
// rules and is always active.
type CustomerCharge struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Amount     decimal.Decimal    `json:"amount"`
	ChargeType CustomerChargeType `json:"chargeType"`
}

// Validate checks the charge invariants.
func (c CustomerCharge) Validate() error {
	if c.Name == "" {
		return invalidf("customer charge missing name")
	}
	if err := validateRate(c.Amount); err != nil {
		return fmt.Errorf("customer charge %q amount: %w", c.Name, err)
	}
	if err := c.ChargeType.Validate(); err != nil {
		return fmt.Errorf("customer charge %q: %w", c.Name, err)
	}
	return nil
}

func validateRate(d decimal.Decimal) error {
	if d.IsNegative() {
		return invalidf("must not be negative, got %s", d)
	}
	if d.Exponent() < -maxRateDecimals {
		return invalidf("more than %d decimal places: %s", maxRateDecimals, d)
	}
	return nil
}

// Tariff is an immutable description of a utility rate plan.
type Tariff struct {
	Utility string `json:"utility"`
	Name    string `json:"name"`

	EnergyCharges   []EnergyCharge   `json:"energyCharges,omitempty"`
	DemandCharges   []DemandCharge   `json:"demandCharges,omitempty"`
	CustomerCharges []CustomerCharge `json:"customerCharges,omitempty"`
}

// ChargeCount returns the total number of charges across all families.
func (t Tariff) ChargeCount() int {
	return len(t.EnergyCharges) + len(t.DemandCharges) + len(t.CustomerCharges)
}

// Validate checks the tariff invariants: at least one charge, every charge
// valid, and charge names unique within each family.
func (t Tariff) Validate() error {
	if t.Name == "" {
		return invalidf("tariff missing name")
	}
	if t.ChargeCount() == 0 {
		return invalidf("tariff %q has no charges", t.Name)
	}
	for _, c := range t.EnergyCharges {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, c := range t.DemandCharges {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, c := range t.CustomerCharges {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for family, names := range map[string][]string{
		"energy":   lo.Map(t.EnergyCharges, func(c EnergyCharge, _ int) string { return c.Name }),
		"demand":   lo.Map(t.DemandCharges, func(c DemandCharge, _ int) string { return c.Name }),
		"customer": lo.Map(t.CustomerCharges, func(c CustomerCharge, _ int) string { return c.Name }),
	} {
		if dupes := lo.FindDuplicates(names); len(dupes) > 0 {
			return invalidf("tariff %q has duplicate %s charge names: %v", t.Name, family, dupes)
		}
	}
	return nil
}

// EnsureChargeIDs fills in any empty charge IDs with a deterministic
// family-qualified identifier. Names are unique per family, so the derived
// IDs are unique within the tariff.
func (t *Tariff) EnsureChargeIDs() {
	for i := range t.EnergyCharges {
		if t.EnergyCharges[i].ID == "" {
			t.EnergyCharges[i].ID = "energy/" + t.EnergyCharges[i].Name
		}
	}
	for i := range t.DemandCharges {
		if t.DemandCharges[i].ID == "" {
			t.DemandCharges[i].ID = "demand/" + t.DemandCharges[i].Name
		}
	}
	for i := range t.CustomerCharges {
		if t.CustomerCharges[i].ID == "" {
			t.CustomerCharges[i].ID = "customer/" + t.CustomerCharges[i].Name
		}
	}
}
