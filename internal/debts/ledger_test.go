package debts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, enums.DebtStatusActive, InitialStatus(decimal.Zero))
	assert.Equal(t, enums.DebtStatusPartiallyPaid, InitialStatus(decimal.RequireFromString("0.01")))
}

func TestNewDebtPrefersOrderDueDate(t *testing.T) {
	completed := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	due := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	order := models.Order{
		ID:         uuid.New(),
		Amount:     decimal.NewFromInt(100),
		PaidAmount: decimal.NewFromInt(40),
		DueDate:    &due,
	}
	debt := NewDebt(order, order.Balance(), completed, 30)
	assert.Equal(t, due, debt.DueDate)
	assert.True(t, debt.RemainingAmount.Equal(decimal.NewFromInt(60)))

	order.DueDate = nil
	debt = NewDebt(order, order.Balance(), completed, 30)
	assert.Equal(t, completed.AddDate(0, 0, 30), debt.DueDate)
}

func TestApplyPaymentNeverGoesNegative(t *testing.T) {
	debt := &models.Debt{
		OriginalAmount:  decimal.NewFromInt(100),
		RemainingAmount: decimal.NewFromInt(100),
		Status:          enums.DebtStatusActive,
	}
	total := decimal.Zero
	for i := 0; i < 7; i++ {
		result := applyPayment(debt, decimal.RequireFromString("15.50"), time.Now())
		total = total.Add(result.Applied)
		assert.False(t, debt.RemainingAmount.IsNegative())
	}
	assert.True(t, debt.RemainingAmount.IsZero())
	assert.Equal(t, enums.DebtStatusPaid, debt.Status)
	assert.True(t, total.Equal(decimal.NewFromInt(100)), total.String())
	assert.True(t, debt.PaidAmount.Equal(decimal.RequireFromString("108.50")))
}
