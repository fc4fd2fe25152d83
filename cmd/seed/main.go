package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/gridbill/gridbill/pkg/log"
	"github.com/gridbill/gridbill/pkg/storage"
	"github.com/gridbill/gridbill/pkg/types"
	"github.com/levenlabs/go-lflag"
	"github.com/shopspring/decimal"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	store := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding demo data")

	db, err := store.Open(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to open storage", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	utility := types.Utility{Name: "valley-power", Timezone: "America/Chicago"}
	if err := db.UpsertUtility(ctx, utility); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed utility", "error", err)
		os.Exit(1)
	}

	holidays := []types.Holiday{
		{Utility: utility.Name, Name: "New Year's Day", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Utility: utility.Name, Name: "Memorial Day", Date: time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC)},
		{Utility: utility.Name, Name: "Independence Day", Date: time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)},
		{Utility: utility.Name, Name: "Labor Day", Date: time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)},
		{Utility: utility.Name, Name: "Thanksgiving", Date: time.Date(2024, 11, 28, 0, 0, 0, 0, time.UTC)},
		{Utility: utility.Name, Name: "Christmas Day", Date: time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)},
	}
	for _, h := range holidays {
		if err := db.UpsertHoliday(ctx, h); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed holiday", "error", err)
			os.Exit(1)
		}
	}

	// Summer weekday afternoons carry a TOU adder and a monthly demand
	// charge; everything else bills at the base rate.
	summerPeak := types.ApplicabilityRule{
		PeriodStart:  14 * 60,
		PeriodEnd:    19 * 60,
		AppliesStart: &types.MonthDay{Month: time.June, Day: 1},
		AppliesEnd:   &types.MonthDay{Month: time.September, Day: 30},
		Weekdays:     true,
	}
	tariff := types.Tariff{
		Utility: utility.Name,
		Name:    "residential-tou",
		EnergyCharges: []types.EnergyCharge{
			{Name: "Base Energy", RatePerKWH: decimal.RequireFromString("0.09")},
			{Name: "Summer Peak Adder", RatePerKWH: decimal.RequireFromString("0.14"), Rules: []types.ApplicabilityRule{summerPeak}},
		},
		DemandCharges: []types.DemandCharge{
			{Name: "Summer Peak Demand", RatePerKW: decimal.RequireFromString("12.50"), PeakType: types.PeakTypeMonthly, Rules: []types.ApplicabilityRule{summerPeak}},
		},
		CustomerCharges: []types.CustomerCharge{
			{Name: "Service Fee", Amount: decimal.RequireFromString("13.25"), ChargeType: types.CustomerChargeMonthly},
		},
	}
	tariff.EnsureChargeIDs()
	if err := tariff.Validate(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "seed tariff invalid", "error", err)
		os.Exit(1)
	}
	if err := db.UpsertTariff(ctx, tariff); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed tariff", "error", err)
		os.Exit(1)
	}

	customer := types.Customer{
		Name:                   "acme-plant",
		Timezone:               utility.Timezone,
		CurrentTariff:          utility.Name + "/" + tariff.Name,
		BillingIntervalMinutes: 15,
		BillingDay:             31,
	}
	if err := customer.Validate(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "seed customer invalid", "error", err)
		os.Exit(1)
	}
	if err := db.UpsertCustomer(ctx, customer); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed customer", "error", err)
		os.Exit(1)
	}

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// One month of synthetic 15-minute usage: a daytime bell curve over a
	// constant base load, with jitter.
	loc, err := customer.Location()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load customer timezone", "error", err)
		os.Exit(1)
	}
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	step := customer.Step()

	const (
		BaseLoadKW = 40.0
		PeakLoadKW = 180.0
	)

	var batch []types.UsageInterval
	for t := start; t.Before(end); t = t.Add(step) {
		local := t.In(loc)
		hour := float64(local.Hour()) + float64(local.Minute())/60

		kw := BaseLoadKW
		if hour > 6 && hour < 22 {
			dist := math.Abs(hour - 15.0)
			kw += PeakLoadKW * math.Exp(-(dist*dist)/18.0)
		}
		// Jitter
		kw += (rng.Float64() * 10.0) - 5.0

		kwh := kw * step.Hours()
		peak := kw * (1.05 + rng.Float64()*0.1)

		batch = append(batch, types.UsageInterval{
			Start:     t.UTC(),
			End:       t.Add(step).UTC(),
			EnergyKWH: decimal.NewFromFloat(kwh).Round(4),
			PeakKW:    decimal.NewFromFloat(peak).Round(4),
		})
		if len(batch) == 96 {
			if err := db.UpsertUsage(ctx, customer.Name, batch); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to seed usage", "error", err)
				os.Exit(1)
			}
			fmt.Printf("Seeded usage through %s\n", t.In(loc).Format("2006-01-02 15:04"))
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := db.UpsertUsage(ctx, customer.Name, batch); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed usage", "error", err)
			os.Exit(1)
		}
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded demo data successfully")
}
