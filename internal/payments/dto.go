package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// RecordPaymentInput captures money received against an order.
type RecordPaymentInput struct {
	OrderID uuid.UUID
	Amount  decimal.Decimal
	Method  enums.PaymentMethod
	// PaidAt defaults to now when zero.
	PaidAt  time.Time
	Notes   *string
	ActorID *uuid.UUID
}

// RecordPaymentResult is everything a payment touched.
type RecordPaymentResult struct {
	Payment *models.Payment
	Order   *models.Order
	// DebtUpdate is nil when the order carries no debt.
	DebtUpdate *debts.ApplyResult
	// Overpaid is how far the order's paid amount now exceeds its amount.
	Overpaid decimal.Decimal
}

// RecordRefundInput captures money handed back to a customer.
type RecordRefundInput struct {
	OrderID  uuid.UUID
	Amount   decimal.Decimal
	Method   enums.PaymentMethod
	RefundAt time.Time
	Notes    *string
	ActorID  *uuid.UUID
}

// Summary is the money view of one order.
type Summary struct {
	OrderID       uuid.UUID       `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	TotalReceived decimal.Decimal `json:"total_received"`
	TotalRefunded decimal.Decimal `json:"total_refunded"`
	Remaining     decimal.Decimal `json:"remaining"`
	Overpaid      decimal.Decimal `json:"overpaid"`
	PaymentCount  int             `json:"payment_count"`
}

// PaymentList wraps a page of payments plus the next page cursor.
type PaymentList struct {
	Payments   []models.Payment `json:"payments"`
	NextCursor string           `json:"next_cursor,omitempty"`
}
