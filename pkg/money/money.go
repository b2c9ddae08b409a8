// Package money holds the decimal helpers used for every amount. Values are
// accumulated at full precision and only rounded when rendered.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every stored amount carries.
const Scale = 2

// WithinScale reports whether amount can be stored without rounding.
// "1.50" and "1.500" pass, "1.505" does not.
func WithinScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(Scale))
}

// Sum adds the amounts without intermediate rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

// Round2 rounds half away from zero to two places. Call it at output
// boundaries only.
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Format renders a two decimal string, e.g. 10 -> "10.00".
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func Positive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}

// ClampZero returns zero for negative amounts.
func ClampZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Excess returns how far amount exceeds limit, or zero.
func Excess(amount, limit decimal.Decimal) decimal.Decimal {
	return ClampZero(amount.Sub(limit))
}

// ParseAmount parses a user supplied amount such as "12.50" or "1,250.00".
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
