package billing

import (
	"context"

	"github.com/gridbill/gridbill/pkg/types"
	"github.com/shopspring/decimal"
)

// demandScope is one peak-detection window: a local calendar day or a
// billing month, as a half-open interval index range plus its pro-rating
// inputs.
type demandScope struct {
	start, end int
	// covered / total express how much of the full scope the request covers:
	// intervals-of-day for daily scopes, calendar days for monthly scopes.
	covered, total int
}

// demandSeries computes the per-interval cost of one demand charge.
//
// Within each scope the masked peak demand M is found, the scope contributes
// M * rate * coverage, and that contribution is split equally across the
// intervals tied at the peak (equality is exact on the stored decimal).
// Intervals not at the peak get zero, preserving the causal attribution of
// the peak while keeping the scope total independent of tie count.
//
// The context is checked between scopes; on cancellation no partial series
// is returned.
func demandSeries(ctx context.Context, g *Grid, u *filledUsage, c types.DemandCharge) ([]decimal.Decimal, error) {
	m := chargeMask(g, c.Rules)

	var scopes []demandScope
	switch c.PeakType {
	case types.PeakTypeDaily:
		for _, day := range g.days {
			scopes = append(scopes, demandScope{
				start: day.start, end: day.end,
				covered: day.end - day.start, total: day.full,
			})
		}
	case types.PeakTypeMonthly:
		for _, span := range g.months {
			scopes = append(scopes, demandScope{
				start: span.start, end: span.end,
				covered: span.coveredDays,
				total:   daysInBillingMonth(span.periodStart, span.periodEnd),
			})
		}
	}

	out := make([]decimal.Decimal, len(g.Intervals))
	for _, s := range scopes {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}

		var peak decimal.Decimal
		var ties []int
		found := false
		for i := s.start; i < s.end; i++ {
			if !m.get(i) {
				continue
			}
			switch {
			case !found || u.peak[i].GreaterThan(peak):
				peak = u.peak[i]
				ties = ties[:0]
				ties = append(ties, i)
				found = true
			case u.peak[i].Equal(peak):
				ties = append(ties, i)
			}
		}
		if !found {
			continue
		}

		contribution := peak.Mul(c.RatePerKW)
		if s.covered != s.total {
			contribution = contribution.
				Mul(decimal.NewFromInt(int64(s.covered))).
				Div(decimal.NewFromInt(int64(s.total)))
		}
		share := contribution.Div(decimal.NewFromInt(int64(len(ties))))
		for _, i := range ties {
			out[i] = share
		}
	}
	return out, nil
}
