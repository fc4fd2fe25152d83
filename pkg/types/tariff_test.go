package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "16:00", want: 16 * 60},
		{in: "23:59", want: 23*60 + 59},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	} {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.in, got.String())
	}
}

func TestParseMonthDay(t *testing.T) {
	md, err := ParseMonthDay("2023-10-01")
	require.NoError(t, err)
	assert.Equal(t, MonthDay{Month: time.October, Day: 1}, md)
	assert.Equal(t, "2000-10-01", md.String(), "year is discarded")
	assert.Equal(t, 1001, md.Ordinal())

	_, err = ParseMonthDay("10-01")
	assert.ErrorIs(t, err, ErrValidation)

	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, MonthDay{Month: time.February, Day: 29}.Validate(), "Feb 29 repeats on leap years")
		assert.ErrorIs(t, MonthDay{Month: time.February, Day: 30}.Validate(), ErrValidation)
		assert.ErrorIs(t, MonthDay{Month: 13, Day: 1}.Validate(), ErrValidation)
	})
}

func TestApplicabilityRuleValidate(t *testing.T) {
	base := ApplicabilityRule{Weekdays: true, Weekends: true, Holidays: true}

	t.Run("AllDaySentinel", func(t *testing.T) {
		assert.NoError(t, base.Validate())
		assert.True(t, base.AllDay())
	})

	t.Run("EqualNonZeroEndpointsRejected", func(t *testing.T) {
		r := base
		r.PeriodStart = 10 * 60
		r.PeriodEnd = 10 * 60
		assert.ErrorIs(t, r.Validate(), ErrValidation)
	})

	t.Run("EndBeforeStartRejected", func(t *testing.T) {
		r := base
		r.PeriodStart = 12 * 60
		r.PeriodEnd = 9 * 60
		assert.ErrorIs(t, r.Validate(), ErrValidation)
	})

	t.Run("SingleDateBoundRejected", func(t *testing.T) {
		r := base
		r.AppliesStart = &MonthDay{Month: time.October, Day: 1}
		assert.ErrorIs(t, r.Validate(), ErrValidation)
		r.AppliesEnd = &MonthDay{Month: time.May, Day: 31}
		assert.NoError(t, r.Validate(), "wrap-year windows are fine")
	})
}

func TestChargeValidate(t *testing.T) {
	t.Run("NegativeRate", func(t *testing.T) {
		c := EnergyCharge{Name: "e", RatePerKWH: decimal.RequireFromString("-0.1")}
		assert.ErrorIs(t, c.Validate(), ErrValidation)
	})

	t.Run("TooManyDecimals", func(t *testing.T) {
		c := EnergyCharge{Name: "e", RatePerKWH: decimal.RequireFromString("0.123456")}
		assert.ErrorIs(t, c.Validate(), ErrValidation)
		c.RatePerKWH = decimal.RequireFromString("0.12345")
		assert.NoError(t, c.Validate())
	})

	t.Run("DemandPeakType", func(t *testing.T) {
		c := DemandCharge{Name: "d", RatePerKW: decimal.New(1, 0), PeakType: "hourly"}
		assert.ErrorIs(t, c.Validate(), ErrValidation)
		c.PeakType = PeakTypeDaily
		assert.NoError(t, c.Validate())
	})

	t.Run("CustomerChargeType", func(t *testing.T) {
		c := CustomerCharge{Name: "c", Amount: decimal.New(10, 0), ChargeType: "weekly"}
		assert.ErrorIs(t, c.Validate(), ErrValidation)
		c.ChargeType = CustomerChargeMonthly
		assert.NoError(t, c.Validate())
	})
}

func TestTariffValidate(t *testing.T) {
	valid := Tariff{
		Utility: "u",
		Name:    "t",
		EnergyCharges: []EnergyCharge{
			{Name: "a", RatePerKWH: decimal.New(1, -1)},
			{Name: "b", RatePerKWH: decimal.New(2, -1)},
		},
	}
	assert.NoError(t, valid.Validate())

	t.Run("NoCharges", func(t *testing.T) {
		assert.ErrorIs(t, Tariff{Utility: "u", Name: "t"}.Validate(), ErrValidation)
	})

	t.Run("DuplicateNamesWithinFamily", func(t *testing.T) {
		dup := valid
		dup.EnergyCharges = []EnergyCharge{
			{Name: "a", RatePerKWH: decimal.New(1, -1)},
			{Name: "a", RatePerKWH: decimal.New(2, -1)},
		}
		assert.ErrorIs(t, dup.Validate(), ErrValidation)
	})

	t.Run("SameNameAcrossFamiliesAllowed", func(t *testing.T) {
		mixed := valid
		mixed.DemandCharges = []DemandCharge{
			{Name: "a", RatePerKW: decimal.New(1, 0), PeakType: PeakTypeMonthly},
		}
		assert.NoError(t, mixed.Validate())
	})

	t.Run("EnsureChargeIDs", func(t *testing.T) {
		tr := valid
		tr.EnergyCharges = append([]EnergyCharge(nil), tr.EnergyCharges...)
		tr.EnergyCharges[0].ID = "custom"
		tr.CustomerCharges = []CustomerCharge{
			{Name: "fee", Amount: decimal.New(10, 0), ChargeType: CustomerChargeMonthly},
		}
		tr.EnsureChargeIDs()
		assert.Equal(t, "custom", tr.EnergyCharges[0].ID, "existing IDs survive")
		assert.Equal(t, "energy/b", tr.EnergyCharges[1].ID)
		assert.Equal(t, "customer/fee", tr.CustomerCharges[0].ID)
	})
}
