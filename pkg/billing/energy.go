package billing

import (
	"github.com/gridbill/gridbill/pkg/types"
	"github.com/shopspring/decimal"
)

// energySeries computes the per-interval cost of one energy charge:
// rate * energy wherever the charge applies. There is no cross-interval
// coupling.
func energySeries(g *Grid, u *filledUsage, c types.EnergyCharge) []decimal.Decimal {
	m := chargeMask(g, c.Rules)
	out := make([]decimal.Decimal, len(g.Intervals))
	for i := range g.Intervals {
		if m.get(i) {
			out[i] = c.RatePerKWH.Mul(u.energy[i])
		}
	}
	return out
}
