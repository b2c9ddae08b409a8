package normalize

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/pkg/money"
)

// Amount reads a money value stored as a decimal, number, numeric string or
// raw bytes. ok is false for anything else, including NaN and infinities.
func Amount(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, false
		}
		amount, err := money.ParseAmount(v)
		return amount, err == nil
	case []byte:
		return Amount(string(v))
	case json.Number:
		return Amount(v.String())
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return Amount(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	default:
		return decimal.Zero, false
	}
}
