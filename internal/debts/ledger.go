package debts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/money"
)

// ApplyResult describes the effect of a payment on a debt.
type ApplyResult struct {
	Debt           *models.Debt
	PreviousStatus enums.DebtStatus
	// Applied is the part of the payment that reduced the balance.
	Applied decimal.Decimal
	// Excess is what remained after the balance hit zero. Remaining is
	// clamped at zero rather than going negative.
	Excess decimal.Decimal
}

// InitialStatus is ACTIVE when nothing was paid and PARTIALLY_PAID otherwise.
func InitialStatus(paid decimal.Decimal) enums.DebtStatus {
	if paid.IsPositive() {
		return enums.DebtStatusPartiallyPaid
	}
	return enums.DebtStatusActive
}

// NewDebt seeds the debt for a completed order. remaining must be positive.
func NewDebt(order models.Order, remaining decimal.Decimal, completedAt time.Time, defaultDueDays int) *models.Debt {
	due := completedAt.AddDate(0, 0, defaultDueDays)
	if order.DueDate != nil && !order.DueDate.IsZero() {
		due = order.DueDate.UTC()
	}
	return &models.Debt{
		ShopID:             order.ShopID,
		CustomerID:         order.CustomerID,
		OrderID:            order.ID,
		OriginalAmount:     order.Amount,
		PaidAmount:         order.PaidAmount,
		RemainingAmount:    remaining,
		Currency:           order.Currency,
		Status:             InitialStatus(order.PaidAmount),
		OrderCompletedDate: completedAt,
		DueDate:            due,
	}
}

// applyPayment mutates debt in place. Written-off debts keep their status
// but still record the money.
func applyPayment(debt *models.Debt, amount decimal.Decimal, at time.Time) ApplyResult {
	previous := debt.Status
	rawRemaining := debt.RemainingAmount.Sub(amount)
	excess := money.ClampZero(rawRemaining.Neg())

	debt.PaidAmount = debt.PaidAmount.Add(amount)
	debt.RemainingAmount = money.ClampZero(rawRemaining)
	paidAt := at
	debt.LastPaymentAt = &paidAt

	if debt.Status != enums.DebtStatusWrittenOff {
		if debt.RemainingAmount.IsZero() {
			debt.Status = enums.DebtStatusPaid
		} else {
			debt.Status = enums.DebtStatusPartiallyPaid
		}
	}

	return ApplyResult{
		Debt:           debt,
		PreviousStatus: previous,
		Applied:        amount.Sub(excess),
		Excess:         excess,
	}
}

// IsOutstanding reports whether the debt still drives reminders.
func IsOutstanding(status enums.DebtStatus) bool {
	return status == enums.DebtStatusActive || status == enums.DebtStatusPartiallyPaid
}
