// Package calculator prices meter readings and ages unpaid bills.
package calculator

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/config"
)

// StandardTier labels readings that match no surcharge or discount tier.
const StandardTier = "standard"

type tier struct {
	label      string
	above      *decimal.Decimal
	below      *decimal.Decimal
	multiplier decimal.Decimal
}

func (t tier) matches(units decimal.Decimal) bool {
	if t.above != nil {
		return units.GreaterThan(*t.above)
	}
	return units.LessThan(*t.below)
}

type lateFee struct {
	afterDays int
	rate      decimal.Decimal
}

// Tariff is an immutable price list.
type Tariff struct {
	rate        decimal.Decimal
	tiers       []tier
	lateFees    []lateFee
	overdueDays int
}

var defaultTariff = FromConfig(config.DefaultTariffConfig())

// Default returns the tariff built from the default config.
func Default() Tariff { return defaultTariff }

// FromConfig builds a tariff. cfg is expected to have passed
// config.ValidateTariffConfig.
func FromConfig(cfg config.TariffConfig) Tariff {
	t := Tariff{
		rate:        decimal.NewFromFloat(cfg.Rate),
		overdueDays: cfg.OverdueDays,
	}
	for _, raw := range cfg.Tiers {
		tr := tier{label: raw.Label, multiplier: decimal.NewFromFloat(raw.Multiplier)}
		if raw.Above != nil {
			bound := decimal.NewFromFloat(*raw.Above)
			tr.above = &bound
		} else if raw.Below != nil {
			bound := decimal.NewFromFloat(*raw.Below)
			tr.below = &bound
		} else {
			continue
		}
		t.tiers = append(t.tiers, tr)
	}
	hundred := decimal.NewFromInt(100)
	for _, raw := range cfg.LateFees {
		t.lateFees = append(t.lateFees, lateFee{
			afterDays: raw.AfterDays,
			rate:      decimal.NewFromFloat(raw.Percent).Div(hundred),
		})
	}
	return t
}

// WithRate returns a copy of t charging rate per unit.
func (t Tariff) WithRate(rate float64) Tariff {
	t.rate = decimal.NewFromFloat(rate)
	return t
}

func (t Tariff) Rate() decimal.Decimal { return t.rate }

// Tier returns the label of the tier applied to units.
func (t Tariff) Tier(units float64) string {
	if !validUnits(units) {
		return StandardTier
	}
	if tr, ok := t.match(decimal.NewFromFloat(units)); ok {
		return tr.label
	}
	return StandardTier
}

// Amount prices units at the tariff rate with the first matching tier
// multiplier, rounded half-up to cents. Invalid units price at zero.
func (t Tariff) Amount(units float64) decimal.Decimal {
	if !validUnits(units) {
		return decimal.Zero
	}
	u := decimal.NewFromFloat(units)
	amount := u.Mul(t.rate)
	if tr, ok := t.match(u); ok {
		amount = amount.Mul(tr.multiplier)
	}
	return amount.Round(2)
}

func (t Tariff) match(units decimal.Decimal) (tier, bool) {
	for _, tr := range t.tiers {
		if tr.matches(units) {
			return tr, true
		}
	}
	return tier{}, false
}

// LateFee charges the first late-fee tier whose threshold days exceeds.
func (t Tariff) LateFee(amount decimal.Decimal, days int) decimal.Decimal {
	for _, fee := range t.lateFees {
		if days > fee.afterDays {
			return amount.Mul(fee.rate).Round(2)
		}
	}
	return decimal.Zero
}

// IsOverdue reports whether an unpaid bill is past the overdue threshold.
func (t Tariff) IsOverdue(billDate time.Time, status billingdomain.PaymentStatus, now time.Time) bool {
	return OverdueDays(billDate, status, now) > t.overdueDays
}

// Outstanding sums amount plus late fee over the open bills.
func (t Tariff) Outstanding(bills []billingdomain.Bill, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, bill := range bills {
		if !bill.IsOpen() {
			continue
		}
		days := OverdueDays(bill.BillDate, bill.PaymentStatus, now)
		total = total.Add(bill.Amount).Add(t.LateFee(bill.Amount, days))
	}
	return total
}

func validUnits(units float64) bool {
	return !math.IsNaN(units) && !math.IsInf(units, 0) && units >= 0
}

// ComputeBillAmount prices units with the default tariff.
func ComputeBillAmount(units float64) decimal.Decimal {
	return defaultTariff.Amount(units)
}

// OverdueDays counts started days since billDate. Paid bills and future bill
// dates count zero.
func OverdueDays(billDate time.Time, status billingdomain.PaymentStatus, now time.Time) int {
	if status == billingdomain.PaymentStatusPaid {
		return 0
	}
	return ElapsedDays(billDate, now)
}

// ElapsedDays counts started days between from and now, so any part of a day
// counts as a whole one. Times in the future count zero.
func ElapsedDays(from, now time.Time) int {
	elapsed := now.Sub(from)
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(elapsed.Hours() / 24))
}

func IsOverdue(billDate time.Time, status billingdomain.PaymentStatus, now time.Time) bool {
	return defaultTariff.IsOverdue(billDate, status, now)
}

func LateFee(amount decimal.Decimal, days int) decimal.Decimal {
	return defaultTariff.LateFee(amount, days)
}

func Outstanding(bills []billingdomain.Bill, now time.Time) decimal.Decimal {
	return defaultTariff.Outstanding(bills, now)
}
