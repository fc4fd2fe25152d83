package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MonthKey identifies a billing month by the calendar month of its closing
// day.
type MonthKey struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// String formats the key as "YYYY-MM".
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Next returns the key of the following billing month.
func (k MonthKey) Next() MonthKey {
	if k.Month == time.December {
		return MonthKey{Year: k.Year + 1, Month: time.January}
	}
	return MonthKey{Year: k.Year, Month: k.Month + 1}
}

// Prev returns the key of the preceding billing month.
func (k MonthKey) Prev() MonthKey {
	if k.Month == time.January {
		return MonthKey{Year: k.Year - 1, Month: time.December}
	}
	return MonthKey{Year: k.Year, Month: k.Month - 1}
}

// Before reports whether k is earlier than other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// GapSummary reports missing usage intervals within one billing month.
type GapSummary struct {
	MissingIntervals int           `json:"missingIntervals"`
	LongestGap       time.Duration `json:"longestGap"`
}

// BillResult is the computed bill for a single billing month.
//
// LineItems holds the unrounded per-charge subtotals keyed by charge ID;
// Total is the half-even rounding of their sum to two decimal places.
// PeriodStart and PeriodEnd are local civil dates, both inclusive.
type BillResult struct {
	Key         MonthKey                   `json:"key"`
	PeriodStart time.Time                  `json:"periodStartLocalDate"`
	PeriodEnd   time.Time                  `json:"periodEndLocalDate"`
	LineItems   map[string]decimal.Decimal `json:"lineItems"`
	Total       decimal.Decimal            `json:"totalUSD"`
	Gaps        GapSummary                 `json:"gaps"`
	// Estimated is set when any charge in the month depends on gap-filled
	// usage.
	Estimated bool `json:"estimated"`
}
