package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/money"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DebtCreator opens a debt for an order that just completed with a balance.
type DebtCreator interface {
	CreateForOrderTx(ctx context.Context, tx *gorm.DB, order models.Order) (*debts.CreateResult, error)
}

// Service exposes order intake and the completion guard.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, query ListQuery) (*OrderList, error)
	TransitionStatus(ctx context.Context, input TransitionInput) (*TransitionResult, error)
}

type service struct {
	repo  Repository
	debts DebtCreator
	tx    txRunner
	logg  *logger.Logger
	now   func() time.Time
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Repo   Repository
	Debts  DebtCreator
	Tx     txRunner
	Logger *logger.Logger
	Now    func() time.Time
}

// NewService builds an order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Debts == nil {
		return nil, fmt.Errorf("debt creator required")
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
		repo:  params.Repo,
		debts: params.Debts,
		tx:    params.Tx,
		logg:  params.Logger,
		now:   now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !money.Positive(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !money.WithinScale(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount has more than two decimal places").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency").
			WithDetails(map[string]any{"currency": string(currency)})
	}

	order := &models.Order{
		ShopID:     input.ShopID,
		CustomerID: input.CustomerID,
		Amount:     input.Amount,
		Currency:   currency,
		Status:     enums.OrderStatusPending,
		Reference:  trimmed(input.Reference),
		Notes:      trimmed(input.Notes),
	}
	if input.DueDate != nil && !input.DueDate.IsZero() {
		due := input.DueDate.UTC()
		order.DueDate = &due
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.FromStore(err, "create order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"shop_id":  order.ShopID.String(),
		"amount":   money.Format(order.Amount),
	})
	s.logg.Info(logCtx, "order.created")
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (*OrderList, error) {
	if query.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if query.Filters.Status != nil && !query.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(query.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list orders")
	}
	return &OrderList{
		Orders:     rows,
		NextCursor: pagination.NextCursor(next),
	}, nil
}

// TransitionStatus moves an order through the completion guard. Entering or
// re-entering COMPLETED with an open balance makes sure a debt exists.
func (s *service) TransitionStatus(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status").
			WithDetails(map[string]any{"status": string(input.Target)})
	}

	var (
		result   TransitionResult
		previous enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.FromStore(err, "load order")
		}
		previous = order.Status

		if !CanTransition(order.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
				WithDetails(map[string]any{
					"orderId": order.ID.String(),
					"from":    string(order.Status),
					"to":      string(input.Target),
				})
		}

		if order.Status != input.Target {
			now := s.now().UTC()
			order.Status = input.Target
			switch input.Target {
			case enums.OrderStatusCompleted:
				order.CompletedAt = &now
			case enums.OrderStatusCancelled:
				order.CancelledAt = &now
			}
			updated, err := repo.UpdateStatus(ctx, order, previous)
			if err != nil {
				return pkgerrors.FromStore(err, "update order status")
			}
			if !updated {
				return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently").
					WithDetails(map[string]any{"orderId": order.ID.String()})
			}
			result.Changed = true
		}

		if order.Status == enums.OrderStatusCompleted {
			created, err := s.debts.CreateForOrderTx(ctx, tx, *order)
			if err != nil {
				return err
			}
			if created != nil {
				result.Debt = created.Debt
				result.DebtCreated = created.Created
			}
		}
		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		fields := map[string]any{
			"order_id": result.Order.ID.String(),
			"shop_id":  result.Order.ShopID.String(),
			"from":     string(previous),
			"to":       string(result.Order.Status),
		}
		if input.ActorID != nil {
			fields["actor_id"] = input.ActorID.String()
		}
		if result.DebtCreated {
			fields["debt_id"] = result.Debt.ID.String()
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order.status_changed")
	}
	return &result, nil
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
