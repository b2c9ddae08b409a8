package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/pkg/money"
)

// Money renders a decimal amount as a JSON string with exactly two decimals.
type Money decimal.Decimal

func NewMoney(amount decimal.Decimal) Money {
	return Money(amount)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.Decimal(m)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(money.Format(decimal.Decimal(m)))
}

// UnmarshalJSON accepts both "12.50" and 12.5.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}
