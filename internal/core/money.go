// Package core defines the ledger's domain types.
//
// Monetary amounts are decimal values; the ledger's minor unit is one
// fractional digit and rounding is half-up, which for the non-negative
// amounts handled here is what decimal.Round performs.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MinorDigits is the ledger's display and allocation precision.
const MinorDigits = 1

// ParseAmount converts a user-supplied amount string to a decimal.
// Both dot (12.5) and comma (12,5) separators are accepted. Negative
// amounts are rejected; zero is allowed so callers decide whether an
// empty charge is meaningful.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundMinor rounds to the ledger's minor-unit precision, half-up.
func RoundMinor(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorDigits)
}

// FormatAmount renders an amount at minor-unit precision for display.
func FormatAmount(d decimal.Decimal) string {
	return RoundMinor(d).StringFixed(MinorDigits)
}
