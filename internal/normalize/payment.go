package normalize

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// ResolvePaymentCompletionState returns the status aggregation should use.
// Payments written before statuses existed have none and are treated as
// COMPLETED. This is the only place that default lives.
func ResolvePaymentCompletionState(status *enums.PaymentStatus) enums.PaymentStatus {
	if status == nil || *status == "" {
		return enums.PaymentStatusCompleted
	}
	return *status
}

// CountsTowardReceived reports whether p adds to the money received on an order.
func CountsTowardReceived(p models.Payment) bool {
	if p.Type == enums.PaymentTypeRefund {
		return false
	}
	return ResolvePaymentCompletionState(p.Status) == enums.PaymentStatusCompleted
}

// TotalReceived sums completed, non-refund payments at full precision.
func TotalReceived(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if CountsTowardReceived(p) {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// TotalRefunded sums completed refunds.
func TotalRefunded(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Type == enums.PaymentTypeRefund &&
			ResolvePaymentCompletionState(p.Status) == enums.PaymentStatusCompleted {
			total = total.Add(p.Amount)
		}
	}
	return total
}
