package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusInProgress,
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusInProgress: {
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
	},
}

// CanTransition reports whether an order may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to enums.OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses that never change again.
func IsTerminal(status enums.OrderStatus) bool {
	return status == enums.OrderStatusCompleted || status == enums.OrderStatusCancelled
}

// StatusAfterPayment decides the order status once newPaid has been
// received against amount. A completed order stays completed no matter how
// much is paid afterwards.
func StatusAfterPayment(current enums.OrderStatus, newPaid, amount decimal.Decimal) enums.OrderStatus {
	if IsTerminal(current) {
		return current
	}
	if newPaid.GreaterThanOrEqual(amount) {
		return enums.OrderStatusCompleted
	}
	return enums.OrderStatusInProgress
}
