package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestComputeBillAmount(t *testing.T) {
	cases := []struct {
		units float64
		want  string
	}{
		{units: 0, want: "0"},
		{units: 40, want: "589"},      // 40*15.50*0.95
		{units: 50, want: "775"},      // lower boundary has no discount
		{units: 120, want: "1860"},    // standard band
		{units: 150, want: "2325"},    // 150 stays in the standard band
		{units: 180, want: "2929.5"},  // 180*15.50*1.05
		{units: 200, want: "3255"},    // 200*15.50*1.05
		{units: 220, want: "3751"},    // 220*15.50*1.10
		{units: 33.3, want: "490.34"}, // 516.15*0.95 = 490.3425
	}
	for _, tc := range cases {
		got := ComputeBillAmount(tc.units)
		if !got.Equal(money(tc.want)) {
			t.Fatalf("ComputeBillAmount(%v) = %s, want %s", tc.units, got, tc.want)
		}
	}
}

func TestComputeBillAmountInvalidUnits(t *testing.T) {
	for _, units := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.True(t, ComputeBillAmount(units).IsZero(), "units %v", units)
	}
}

func TestComputeBillAmountMonotonicWithinTier(t *testing.T) {
	bands := [][2]float64{{0, 49.99}, {50, 150}, {150.01, 200}, {200.01, 1000}}
	tariff := Default()
	for _, band := range bands {
		label := tariff.Tier(band[0])
		prev := tariff.Amount(band[0])
		for units := band[0]; units <= band[1]; units += 0.37 {
			require.Equal(t, label, tariff.Tier(units), "tier changed inside band at %v", units)
			got := tariff.Amount(units)
			if got.LessThan(prev) {
				t.Fatalf("amount decreased at %v: %s < %s", units, got, prev)
			}
			prev = got
		}
	}
}

func TestTierLabels(t *testing.T) {
	tariff := Default()
	assert.Equal(t, "discount_5", tariff.Tier(10))
	assert.Equal(t, StandardTier, tariff.Tier(150))
	assert.Equal(t, "surcharge_5", tariff.Tier(150.5))
	assert.Equal(t, "surcharge_10", tariff.Tier(201))
	assert.Equal(t, StandardTier, tariff.Tier(-5))
}

func TestWithRate(t *testing.T) {
	got := Default().WithRate(2.50).Amount(120)
	assert.True(t, got.Equal(money("300")), "got %s", got)
	// the default tariff is untouched
	assert.True(t, ComputeBillAmount(120).Equal(money("1860")))
}

func TestOverdueDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 45, OverdueDays(now.AddDate(0, 0, -45), billingdomain.PaymentStatusUnpaid, now))
	assert.True(t, IsOverdue(now.AddDate(0, 0, -45), billingdomain.PaymentStatusUnpaid, now))

	assert.Equal(t, 0, OverdueDays(now.AddDate(0, 0, -45), billingdomain.PaymentStatusPaid, now))
	assert.False(t, IsOverdue(now.AddDate(0, 0, -45), billingdomain.PaymentStatusPaid, now))

	assert.Equal(t, 0, OverdueDays(now.Add(48*time.Hour), billingdomain.PaymentStatusUnpaid, now))
	assert.Equal(t, 1, OverdueDays(now.Add(-time.Hour), billingdomain.PaymentStatusUnpaid, now))

	assert.False(t, IsOverdue(now.AddDate(0, 0, -30), billingdomain.PaymentStatusUnpaid, now))
	assert.True(t, IsOverdue(now.AddDate(0, 0, -31), billingdomain.PaymentStatusOverdue, now))
}

func TestElapsedDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 30, ElapsedDays(now.AddDate(0, 0, -30), now))
	assert.Equal(t, 31, ElapsedDays(now.AddDate(0, 0, -30).Add(-22*time.Hour), now))
	assert.Equal(t, 1, ElapsedDays(now.Add(-time.Minute), now))
	assert.Equal(t, 0, ElapsedDays(now, now))
	assert.Equal(t, 0, ElapsedDays(now.Add(time.Hour), now))
}

func TestLateFee(t *testing.T) {
	amount := money("1000")
	cases := map[int]string{
		70: "100",
		61: "100",
		60: "50",
		31: "50",
		30: "20",
		16: "20",
		15: "0",
		0:  "0",
	}
	for days, want := range cases {
		got := LateFee(amount, days)
		if !got.Equal(money(want)) {
			t.Fatalf("LateFee(1000, %d) = %s, want %s", days, got, want)
		}
	}
	assert.True(t, LateFee(money("333.33"), 20).Equal(money("6.67")))
}

func TestOutstanding(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	bills := []billingdomain.Bill{
		{Amount: money("1000"), PaymentStatus: billingdomain.PaymentStatusUnpaid, BillDate: now.AddDate(0, 0, -10)},
		{Amount: money("1000"), PaymentStatus: billingdomain.PaymentStatusOverdue, BillDate: now.AddDate(0, 0, -70)},
		{Amount: money("500"), PaymentStatus: billingdomain.PaymentStatusPaid, BillDate: now.AddDate(0, 0, -90)},
	}
	got := Outstanding(bills, now)
	assert.True(t, got.Equal(money("2100")), "got %s", got)
}

func TestFromConfigUsesConfiguredTiers(t *testing.T) {
	cfg := config.DefaultTariffConfig()
	cfg.Rate = 10
	cfg.OverdueDays = 10
	above := 10.0
	cfg.Tiers = []config.TariffTier{{Label: "heavy", Above: &above, Multiplier: 2}}
	cfg.LateFees = []config.LateFeeTier{{AfterDays: 5, Percent: 50}}
	tariff := FromConfig(cfg)

	assert.True(t, tariff.Amount(20).Equal(money("400")))
	assert.True(t, tariff.Amount(5).Equal(money("50")))
	assert.True(t, tariff.LateFee(money("100"), 6).Equal(money("50")))

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, tariff.IsOverdue(now.AddDate(0, 0, -11), billingdomain.PaymentStatusUnpaid, now))
}

func TestProviderFollowsHolder(t *testing.T) {
	holder := config.NewStaticTariffHolder(config.DefaultTariffConfig())
	provider := NewProvider(holder)
	assert.True(t, provider.Tariff().Amount(120).Equal(money("1860")))

	updated := config.DefaultTariffConfig()
	updated.Rate = 20
	require.NoError(t, holder.Store(updated))
	assert.True(t, provider.Tariff().Amount(120).Equal(money("2400")))
}
