package billing

import (
	"github.com/gridbill/gridbill/pkg/types"
	"github.com/shopspring/decimal"
)

// customerSeries spreads a flat customer charge onto intervals. Customer
// charges carry no applicability rules.
//
// Monthly charges are prorated by covered-days-of-billing-month and spread
// evenly over the month's intervals; a fully covered month totals exactly
// the charge amount. Daily charges allocate amount/intervals-in-full-day to
// each covered interval, so a partially covered day contributes
// proportionally to its coverage.
func customerSeries(g *Grid, c types.CustomerCharge) []decimal.Decimal {
	out := make([]decimal.Decimal, len(g.Intervals))
	switch c.ChargeType {
	case types.CustomerChargeMonthly:
		for _, span := range g.months {
			totalDays := daysInBillingMonth(span.periodStart, span.periodEnd)
			contribution := c.Amount.
				Mul(decimal.NewFromInt(int64(span.coveredDays))).
				Div(decimal.NewFromInt(int64(totalDays)))
			share := contribution.Div(decimal.NewFromInt(int64(span.end - span.start)))
			for i := span.start; i < span.end; i++ {
				out[i] = share
			}
		}
	case types.CustomerChargeDaily:
		for _, day := range g.days {
			share := c.Amount.Div(decimal.NewFromInt(int64(day.full)))
			for i := day.start; i < day.end; i++ {
				out[i] = share
			}
		}
	}
	return out
}
