// Package money holds the fixed-scale decimal rules for auction amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every amount carries.
const Scale = 2

// HasValidScale reports whether d carries no more than Scale decimal places.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}

// Parse reads a wire amount such as "120" or "120.50". It never goes
// through float64.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Format renders an amount with exactly Scale places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
