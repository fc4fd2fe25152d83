// Package usagecsv parses interval usage uploads in the CSV interchange
// format and normalises them to canonical units (kWh per interval, kW peak).
package usagecsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gridbill/gridbill/pkg/types"
	"github.com/shopspring/decimal"
)

var requiredColumns = []string{
	"interval_start", "interval_end",
	"usage", "usage_unit",
	"peak_demand", "peak_demand_unit",
}

var optionalColumns = []string{"temperature", "temperature_unit"}

// RowError collects the problems found on one CSV row. Row numbers are
// 1-indexed including the header, matching what a spreadsheet shows.
type RowError struct {
	Row      int
	Start    string
	Messages []string
}

func (e RowError) String() string {
	id := fmt.Sprintf("row %d", e.Row)
	if e.Start != "" {
		id += ": " + e.Start
	}
	return fmt.Sprintf("%s: %s", id, strings.Join(e.Messages, "; "))
}

// Result is the outcome of parsing a usage CSV. Rows that failed validation
// appear in Errors and are absent from Intervals.
type Result struct {
	Intervals []types.UsageInterval
	Errors    []RowError
}

// Parse reads a usage CSV. A header problem fails the whole parse; row
// problems are isolated into the result's Errors. Timestamps must be
// ISO-8601 with an explicit offset; naive timestamps are rejected.
func Parse(r io.Reader) (Result, error) {
	var res Result

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return res, fmt.Errorf("%w: missing CSV header: %v", types.ErrValidation, err)
	}
	index, err := validateHeader(header)
	if err != nil {
		return res, err
	}

	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("%w: invalid CSV syntax on row %d: %v", types.ErrValidation, row, err)
		}
		iv, rowErr := parseRow(record, index, row)
		if rowErr != nil {
			res.Errors = append(res.Errors, *rowErr)
			continue
		}
		res.Intervals = append(res.Intervals, iv)
	}
	if len(res.Intervals) == 0 && len(res.Errors) == 0 {
		return res, fmt.Errorf("%w: no data rows found", types.ErrValidation)
	}
	return res, nil
}

func validateHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: CSV header missing columns: %s",
			types.ErrValidation, strings.Join(missing, ", "))
	}
	known := make(map[string]struct{}, len(requiredColumns)+len(optionalColumns))
	for _, col := range append(append([]string{}, requiredColumns...), optionalColumns...) {
		known[col] = struct{}{}
	}
	var extra []string
	for col := range index {
		if _, ok := known[col]; !ok {
			extra = append(extra, col)
		}
	}
	if len(extra) > 0 {
		return nil, fmt.Errorf("%w: CSV header has unexpected columns: %s",
			types.ErrValidation, strings.Join(extra, ", "))
	}
	return index, nil
}

func parseRow(record []string, index map[string]int, row int) (types.UsageInterval, *RowError) {
	get := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rowErr := &RowError{Row: row, Start: get("interval_start")}
	fail := func(format string, args ...any) {
		rowErr.Messages = append(rowErr.Messages, fmt.Sprintf(format, args...))
	}

	var iv types.UsageInterval
	var err error
	if iv.Start, err = parseTimestamp(get("interval_start")); err != nil {
		fail("interval_start: %v", err)
	}
	if iv.End, err = parseTimestamp(get("interval_end")); err != nil {
		fail("interval_end: %v", err)
	}

	energy, err := decimal.NewFromString(get("usage"))
	switch {
	case err != nil:
		fail("usage: invalid number %q", get("usage"))
	case energy.IsNegative():
		fail("usage must not be negative")
	default:
		if iv.EnergyKWH, err = toKWH(energy, get("usage_unit")); err != nil {
			fail("%v", err)
		}
	}

	demand, err := decimal.NewFromString(get("peak_demand"))
	switch {
	case err != nil:
		fail("peak_demand: invalid number %q", get("peak_demand"))
	case demand.IsNegative():
		fail("peak_demand must not be negative")
	default:
		if iv.PeakKW, err = toKW(demand, get("peak_demand_unit")); err != nil {
			fail("%v", err)
		}
	}

	if len(rowErr.Messages) == 0 && !iv.End.After(iv.Start) {
		fail("interval_end must be after interval_start")
	}
	if len(rowErr.Messages) > 0 {
		return iv, rowErr
	}
	return iv, nil
}

// parseTimestamp accepts ISO-8601 timestamps bearing an explicit offset or
// Z. time.RFC3339 requires the offset, so naive timestamps fail here.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q (must be ISO-8601 with offset)", s)
	}
	return t.UTC(), nil
}

var thousand = decimal.NewFromInt(1000)

func toKWH(v decimal.Decimal, unit string) (decimal.Decimal, error) {
	switch strings.ToLower(unit) {
	case "kwh":
		return v, nil
	case "wh":
		return v.Div(thousand), nil
	case "mwh":
		return v.Mul(thousand), nil
	}
	return decimal.Decimal{}, fmt.Errorf("usage_unit: unsupported unit %q", unit)
}

func toKW(v decimal.Decimal, unit string) (decimal.Decimal, error) {
	switch strings.ToLower(unit) {
	case "kw":
		return v, nil
	case "w":
		return v.Div(thousand), nil
	case "mw":
		return v.Mul(thousand), nil
	}
	return decimal.Decimal{}, fmt.Errorf("peak_demand_unit: unsupported unit %q", unit)
}
