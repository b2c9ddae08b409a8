package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/internal/normalize"
	"github.com/angelmondragon/shopledger-backend/internal/orders"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/metrics"
	"github.com/angelmondragon/shopledger-backend/pkg/money"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DebtApplier reduces the debt of an order by a payment.
type DebtApplier interface {
	ApplyPaymentForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal, paidAt time.Time) (*debts.ApplyResult, error)
}

// Service records money moving against orders.
type Service interface {
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*RecordPaymentResult, error)
	RecordRefund(ctx context.Context, input RecordRefundInput) (*models.Payment, error)
	ListPayments(ctx context.Context, orderID uuid.UUID, params pagination.Params) (*PaymentList, error)
	Summary(ctx context.Context, orderID uuid.UUID) (*Summary, error)
}

// ServiceParams wires the payment recorder.
type ServiceParams struct {
	Repo    Repository
	Orders  orders.Repository
	Debts   DebtApplier
	Tx      txRunner
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
	Now     func() time.Time
}

type service struct {
	repo    Repository
	orders  orders.Repository
	debts   DebtApplier
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewService wires a payment recorder with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Debts == nil {
		return nil, fmt.Errorf("debt applier required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		orders:  params.Orders,
		debts:   params.Debts,
		tx:      params.Tx,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// RecordPayment appends a payment, advances the order and settles its debt
// in one transaction. Nothing is written when validation fails.
func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*RecordPaymentResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !money.Positive(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}
	if !money.WithinScale(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount has more than two decimal places").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"method": string(input.Method)})
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	paidAt = paidAt.UTC()

	var result RecordPaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		order, err := orderRepo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.FromStore(err, "load order")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payments cannot be recorded on a cancelled order").
				WithDetails(map[string]any{"orderId": order.ID.String()})
		}

		previousPaid := order.PaidAmount
		newPaid := previousPaid.Add(input.Amount)
		overpaid := money.Excess(newPaid, order.Amount)

		completed := normalize.ResolvePaymentCompletionState(nil)
		payment := &models.Payment{
			OrderID:    order.ID,
			ShopID:     order.ShopID,
			CustomerID: order.CustomerID,
			Amount:     input.Amount,
			Currency:   order.Currency,
			Method:     input.Method,
			Type:       enums.PaymentTypeOrderPayment,
			Status:     &completed,
			Overpaid:   overpaid.IsPositive(),
			PaidAt:     paidAt,
			Notes:      trimmed(input.Notes),
			RecordedBy: input.ActorID,
		}
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.FromStore(err, "create payment")
		}

		next := orders.StatusAfterPayment(order.Status, newPaid, order.Amount)
		if next == enums.OrderStatusCompleted && order.Status != enums.OrderStatusCompleted {
			at := paidAt
			order.CompletedAt = &at
		}
		order.PaidAmount = newPaid
		order.Status = next
		updated, err := orderRepo.UpdatePayment(ctx, order, previousPaid)
		if err != nil {
			return pkgerrors.FromStore(err, "update order balance")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConflict, "order balance changed concurrently; retry the payment").
				WithDetails(map[string]any{"orderId": order.ID.String()})
		}

		debtUpdate, err := s.debts.ApplyPaymentForOrderTx(ctx, tx, order.ID, input.Amount, paidAt)
		if err != nil {
			return err
		}

		result = RecordPaymentResult{
			Payment:    payment,
			Order:      order,
			DebtUpdate: debtUpdate,
			Overpaid:   overpaid,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPayment(string(input.Method))
	fields := map[string]any{
		"order_id":   result.Order.ID.String(),
		"shop_id":    result.Order.ShopID.String(),
		"payment_id": result.Payment.ID.String(),
		"amount":     money.Format(input.Amount),
		"method":     string(input.Method),
		"status":     string(result.Order.Status),
	}
	if result.DebtUpdate != nil {
		fields["debt_id"] = result.DebtUpdate.Debt.ID.String()
	}
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Info(logCtx, "payment.recorded")
	if result.Overpaid.IsPositive() {
		s.logg.Warn(s.logg.WithField(logCtx, "overpaid", money.Format(result.Overpaid)), "payment.overpaid")
	}
	return &result, nil
}

// RecordRefund appends a REFUND payment. The order's paid amount is left
// alone; refunds only show up in summaries.
func (s *service) RecordRefund(ctx context.Context, input RecordRefundInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !money.Positive(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if !money.WithinScale(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount has more than two decimal places").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"method": string(input.Method)})
	}
	at := input.RefundAt
	if at.IsZero() {
		at = s.now()
	}

	var refund *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.FromStore(err, "load order")
		}
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListByOrderID(ctx, order.ID)
		if err != nil {
			return pkgerrors.FromStore(err, "list payments")
		}
		refundable := normalize.TotalReceived(existing).Sub(normalize.TotalRefunded(existing))
		if input.Amount.GreaterThan(refundable) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds money received").
				WithDetails(map[string]any{
					"amount":     money.Format(input.Amount),
					"refundable": money.Format(refundable),
				})
		}

		completed := enums.PaymentStatusCompleted
		refund = &models.Payment{
			OrderID:    order.ID,
			ShopID:     order.ShopID,
			CustomerID: order.CustomerID,
			Amount:     input.Amount,
			Currency:   order.Currency,
			Method:     input.Method,
			Type:       enums.PaymentTypeRefund,
			Status:     &completed,
			PaidAt:     at.UTC(),
			Notes:      trimmed(input.Notes),
			RecordedBy: input.ActorID,
		}
		if err := repo.Create(ctx, refund); err != nil {
			return pkgerrors.FromStore(err, "create refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  refund.OrderID.String(),
		"refund_id": refund.ID.String(),
		"amount":    money.Format(refund.Amount),
	})
	s.logg.Info(logCtx, "payment.refunded")
	return refund, nil
}

func (s *service) ListPayments(ctx context.Context, orderID uuid.UUID, params pagination.Params) (*PaymentList, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListPage(ctx, orderID, params)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list payments")
	}
	return &PaymentList{Payments: rows, NextCursor: pagination.NextCursor(next)}, nil
}

// Summary totals an order's payments. Payments without a status count as
// completed.
func (s *service) Summary(ctx context.Context, orderID uuid.UUID) (*Summary, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "load order")
	}
	rows, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list payments")
	}
	received := normalize.TotalReceived(rows)
	return &Summary{
		OrderID:       order.ID,
		Amount:        order.Amount,
		TotalReceived: received,
		TotalRefunded: normalize.TotalRefunded(rows),
		Remaining:     money.ClampZero(order.Amount.Sub(received)),
		Overpaid:      money.Excess(received, order.Amount),
		PaymentCount:  len(rows),
	}, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
