package types

import (
	"fmt"
	"time"
)

// DefaultBillingIntervalMinutes is the usage cadence assumed when a customer
// does not specify one.
const DefaultBillingIntervalMinutes = 5

// Utility is a utility company. Holidays and tariffs hang off of it.
type Utility struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Validate checks the utility invariants.
func (u Utility) Validate() error {
	if u.Name == "" {
		return invalidf("utility missing name")
	}
	if u.Timezone != "" {
		if _, err := time.LoadLocation(u.Timezone); err != nil {
			return invalidf("utility %q timezone: %v", u.Name, err)
		}
	}
	return nil
}

// Holiday is a utility holiday on a local civil date. Date carries only the
// year/month/day; its clock fields are ignored.
type Holiday struct {
	Utility string    `json:"utility"`
	Name    string    `json:"name"`
	Date    time.Time `json:"date"`
}

// DateKey returns the civil date formatted as "YYYY-MM-DD", the canonical
// key used for holiday lookups.
func (h Holiday) DateKey() string {
	return h.Date.Format("2006-01-02")
}

// Validate checks the holiday invariants.
func (h Holiday) Validate() error {
	if h.Date.IsZero() {
		return invalidf("holiday %q missing date", h.Name)
	}
	return nil
}

// Customer is the billing profile for a metered customer.
//
// CurrentTariff names the active tariff as "utility/tariff-name".
//
// BillingDay is the last day included in a billing month: the month ends at
// 23:59:59 local on BillingDay and the next month begins at 00:00 local of
// the following day. When the calendar month is shorter than BillingDay the
// month ends on the last calendar day.
type Customer struct {
	Name                   string `json:"name"`
	Timezone               string `json:"timezone"`
	CurrentTariff          string `json:"currentTariff,omitempty"`
	BillingIntervalMinutes int    `json:"billingIntervalMinutes"`
	BillingDay             int    `json:"billingDay"`
}

// Validate checks the customer invariants. The billing interval must divide
// both an hour and a day evenly; sub-5-minute cadences are not supported.
func (c Customer) Validate() error {
	if c.Name == "" {
		return invalidf("customer missing name")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return invalidf("customer %q timezone: %v", c.Name, err)
	}
	if c.BillingDay < 1 || c.BillingDay > 31 {
		return invalidf("customer %q billing day %d out of range [1,31]", c.Name, c.BillingDay)
	}
	step := c.BillingIntervalMinutes
	if step < 5 || 60%step != 0 || (24*60)%step != 0 {
		return invalidf("customer %q billing interval %d minutes must be >= 5 and divide 60 and 1440 evenly", c.Name, step)
	}
	return nil
}

// Location loads the customer's IANA time zone.
func (c Customer) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Step returns the customer's billing interval as a duration.
func (c Customer) Step() time.Duration {
	return time.Duration(c.BillingIntervalMinutes) * time.Minute
}
