// Package core provides the expense record and its value helpers.
//
// Amounts are shopspring decimals so that sums of user-entered values like
// 0.1 + 0.2 stay exact; go-money is only used to render them.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the ISO code used when none is configured.
const DefaultCurrency = "EUR"

// ParseAmount parses a user-entered amount. Both '.' and ',' are accepted as
// the decimal separator. Zero and non-numeric input are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = normalizeAmount(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsZero() {
		return decimal.Zero, ErrZeroAmount
	}
	return d, nil
}

// ParseAmountLenient parses an amount from imported data; anything unparsable is zero.
func ParseAmountLenient(s string) decimal.Decimal {
	d, err := decimal.NewFromString(normalizeAmount(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	// Only the first comma is a decimal separator.
	return strings.Replace(s, ",", ".", 1)
}

// FormatMoney renders an amount in the given currency, e.g. "€12.50".
// Unknown currency codes fall back to DefaultCurrency.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		cur = money.GetCurrency(DefaultCurrency)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
