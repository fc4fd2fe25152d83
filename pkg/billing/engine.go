package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/gridbill/gridbill/pkg/log"
	"github.com/gridbill/gridbill/pkg/types"
	"github.com/shopspring/decimal"
)

// Request carries the immutable inputs of one bill computation. PeriodStart
// and PeriodEnd are local civil dates, both inclusive; only their
// year/month/day are read.
type Request struct {
	Customer types.Customer
	Tariff   types.Tariff
	Holidays []types.Holiday
	Usage    []types.UsageInterval
	Strategy types.GapStrategy

	PeriodStart time.Time
	PeriodEnd   time.Time
}

type costKey struct {
	startUnix int64
	chargeID  string
}

// Computation is the result of one bill computation. It owns the interval
// index and the cost matrix; both are released when it goes out of scope.
type Computation struct {
	// Months holds one result per billing month, ascending.
	Months []types.BillResult
	// GrandTotal is the sum of the rounded month totals.
	GrandTotal decimal.Decimal
	// Gaps reports the repaired usage intervals.
	Gaps GapReport

	grid   *Grid
	matrix map[costKey]decimal.Decimal
}

// CostMatrix returns the cost attributed to (interval start, charge) for
// auditing. Intervals with no attribution return zero.
func (c *Computation) CostMatrix(utcStart time.Time, chargeID string) decimal.Decimal {
	return c.matrix[costKey{startUnix: utcStart.Unix(), chargeID: chargeID}]
}

// Intervals exposes the labelled interval index, for visualisation of the
// cost matrix.
func (c *Computation) Intervals() []Interval {
	return c.grid.Intervals
}

// Compute runs a full billing computation. It is a pure function of its
// inputs: it holds no locks, mutates no globals, and performs no I/O, so
// independent computations may run concurrently over a shared tariff and
// holiday snapshot.
//
// The context is checked between charges and between demand scopes; on
// cancellation Compute returns ErrCancelled and no partial result.
func Compute(ctx context.Context, req Request) (*Computation, error) {
	if err := req.Strategy.Validate(); err != nil {
		return nil, err
	}
	if err := req.Customer.Validate(); err != nil {
		return nil, err
	}
	if err := req.Tariff.Validate(); err != nil {
		return nil, err
	}
	tariff := req.Tariff
	tariff.EnergyCharges = append([]types.EnergyCharge(nil), tariff.EnergyCharges...)
	tariff.DemandCharges = append([]types.DemandCharge(nil), tariff.DemandCharges...)
	tariff.CustomerCharges = append([]types.CustomerCharge(nil), tariff.CustomerCharges...)
	tariff.EnsureChargeIDs()

	holidays := make(map[string]struct{}, len(req.Holidays))
	for _, h := range req.Holidays {
		if h.Utility != "" && tariff.Utility != "" && h.Utility != tariff.Utility {
			continue
		}
		holidays[h.DateKey()] = struct{}{}
	}

	grid, err := BuildGrid(req.PeriodStart, req.PeriodEnd, req.Customer.Timezone,
		req.Customer.Step(), req.Customer.BillingDay, holidays)
	if err != nil {
		return nil, err
	}

	usage, gaps, err := fillGaps(grid, req.Usage, req.Strategy)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).DebugContext(ctx, "computing bill",
		slog.String("customer", req.Customer.Name),
		slog.String("tariff", tariff.Name),
		slog.Int("intervals", len(grid.Intervals)),
		slog.Int("missing", gaps.TotalMissing))

	comp := &Computation{
		Gaps:   gaps,
		grid:   grid,
		matrix: make(map[costKey]decimal.Decimal),
	}

	type chargeSeries struct {
		id     string
		series []decimal.Decimal
	}
	var all []chargeSeries

	for _, c := range tariff.EnergyCharges {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}
		all = append(all, chargeSeries{id: c.ID, series: energySeries(grid, usage, c)})
	}
	for _, c := range tariff.DemandCharges {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}
		series, err := demandSeries(ctx, grid, usage, c)
		if err != nil {
			return nil, err
		}
		all = append(all, chargeSeries{id: c.ID, series: series})
	}
	for _, c := range tariff.CustomerCharges {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}
		all = append(all, chargeSeries{id: c.ID, series: customerSeries(grid, c)})
	}

	for _, cs := range all {
		for i, v := range cs.series {
			if !v.IsZero() {
				comp.matrix[costKey{
					startUnix: grid.Intervals[i].UTCStart.Unix(),
					chargeID:  cs.id,
				}] = v
			}
		}
	}

	// Assemble one result per billing month. Line items are accumulated
	// unrounded; only the month total is rounded (half-even, 2 places).
	for _, span := range grid.months {
		result := types.BillResult{
			Key:         span.key,
			PeriodStart: span.periodStart,
			PeriodEnd:   span.periodEnd,
			LineItems:   make(map[string]decimal.Decimal, len(all)),
			Gaps:        gaps.ByMonth[span.key],
		}
		var total decimal.Decimal
		for _, cs := range all {
			var sum decimal.Decimal
			for i := span.start; i < span.end; i++ {
				sum = sum.Add(cs.series[i])
			}
			result.LineItems[cs.id] = sum
			total = total.Add(sum)
		}
		result.Total = total.RoundBank(2)
		for i := span.start; i < span.end && !result.Estimated; i++ {
			result.Estimated = usage.filled[i]
		}
		comp.Months = append(comp.Months, result)
		comp.GrandTotal = comp.GrandTotal.Add(result.Total)
	}

	return comp, nil
}
