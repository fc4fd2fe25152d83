package billing

import (
	"context"
	"testing"
	"time"

	"github.com/gridbill/gridbill/pkg/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// threeDayRequest bills 2024-01-01..03 hourly with the given per-interval
// energy readings (72 values, in tenths of a kWh).
func threeDayRequest(tenths []int) Request {
	usage := make([]types.UsageInterval, len(tenths))
	for i, v := range tenths {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
		usage[i] = types.UsageInterval{
			Start:     start,
			End:       start.Add(time.Hour),
			EnergyKWH: decimal.New(int64(v), -1),
			PeakKW:    decimal.New(int64(v), -1),
		}
	}
	return Request{
		Customer: utcCustomer(60, 31),
		Tariff: types.Tariff{
			Utility: "u",
			Name:    "prop",
			EnergyCharges: []types.EnergyCharge{
				{Name: "Energy", RatePerKWH: decimal.RequireFromString("0.17")},
			},
			DemandCharges: []types.DemandCharge{
				{Name: "Demand", RatePerKW: decimal.RequireFromString("3"), PeakType: types.PeakTypeDaily},
			},
		},
		Usage:       usage,
		Strategy:    types.GapExtrapolateLast,
		PeriodStart: civil(2024, 1, 1),
		PeriodEnd:   civil(2024, 1, 3),
	}
}

func TestComputeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	readings := gen.SliceOfN(72, gen.IntRange(0, 500))

	properties.Property("energy line items are linear in energy", prop.ForAll(
		func(tenths []int, k int) bool {
			base, err := Compute(context.Background(), threeDayRequest(tenths))
			if err != nil {
				return false
			}
			scaledReq := threeDayRequest(tenths)
			factor := decimal.NewFromInt(int64(k))
			for i := range scaledReq.Usage {
				scaledReq.Usage[i].EnergyKWH = scaledReq.Usage[i].EnergyKWH.Mul(factor)
			}
			scaled, err := Compute(context.Background(), scaledReq)
			if err != nil {
				return false
			}
			want := base.Months[0].LineItems["energy/Energy"].Mul(factor)
			return want.Equal(scaled.Months[0].LineItems["energy/Energy"])
		},
		readings, gen.IntRange(2, 9),
	))

	properties.Property("result is permutation-invariant in usage order", prop.ForAll(
		func(tenths []int, seed int64) bool {
			base, err := Compute(context.Background(), threeDayRequest(tenths))
			if err != nil {
				return false
			}
			shuffledReq := threeDayRequest(tenths)
			// deterministic Fisher-Yates driven by the generated seed
			n := len(shuffledReq.Usage)
			s := seed
			for i := n - 1; i > 0; i-- {
				s = s*6364136223846793005 + 1442695040888963407
				j := int((uint64(s) >> 33) % uint64(i+1))
				shuffledReq.Usage[i], shuffledReq.Usage[j] = shuffledReq.Usage[j], shuffledReq.Usage[i]
			}
			shuffled, err := Compute(context.Background(), shuffledReq)
			if err != nil {
				return false
			}
			if !base.GrandTotal.Equal(shuffled.GrandTotal) {
				return false
			}
			for id, v := range base.Months[0].LineItems {
				if !v.Equal(shuffled.Months[0].LineItems[id]) {
					return false
				}
			}
			return true
		},
		readings, gen.Int64(),
	))

	properties.Property("line items sum to the unrounded total", prop.ForAll(
		func(tenths []int) bool {
			comp, err := Compute(context.Background(), threeDayRequest(tenths))
			if err != nil {
				return false
			}
			for _, month := range comp.Months {
				var sum decimal.Decimal
				for _, v := range month.LineItems {
					sum = sum.Add(v)
				}
				if !sum.RoundBank(2).Equal(month.Total) {
					return false
				}
			}
			return true
		},
		readings,
	))

	properties.TestingRun(t)
}
