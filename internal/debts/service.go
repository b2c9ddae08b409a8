package debts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/db"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/metrics"
	"github.com/angelmondragon/shopledger-backend/pkg/money"
)

const defaultDueDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CompletedOrderLister supplies the orders a backfill should look at.
type CompletedOrderLister interface {
	ListCompletedWithBalance(ctx context.Context, shopID uuid.UUID) ([]models.Order, error)
	ShopIDsWithCompletedBalance(ctx context.Context) ([]uuid.UUID, error)
}

// Service is the debt ledger.
type Service interface {
	CreateDebtRecord(ctx context.Context, order models.Order, remaining decimal.Decimal) (*CreateResult, error)
	CreateForOrderTx(ctx context.Context, tx *gorm.DB, order models.Order) (*CreateResult, error)
	ApplyPayment(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal) (*ApplyResult, error)
	ApplyPaymentForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal, paidAt time.Time) (*ApplyResult, error)
	Get(ctx context.Context, debtID uuid.UUID) (*models.Debt, error)
	ListOutstanding(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID) ([]models.Debt, error)
	ListOverdue(ctx context.Context, shopID uuid.UUID, now time.Time) ([]models.Debt, error)
	EnsureDebtRecordsForCompletedOrders(ctx context.Context, shopID uuid.UUID) (*BackfillResult, error)
	EnsureDebtRecordsForAllShops(ctx context.Context) (*BackfillResult, error)
	WriteOff(ctx context.Context, debtID uuid.UUID, reason string) (*models.Debt, error)
	Summary(ctx context.Context, shopID uuid.UUID) (*Summary, error)
}

// CreateResult reports whether a new debt was written or an existing one returned.
type CreateResult struct {
	Debt    *models.Debt
	Created bool
}

// BackfillResult counts what a backfill pass did.
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

func (b *BackfillResult) add(other *BackfillResult) {
	if other == nil {
		return
	}
	b.Scanned += other.Scanned
	b.Created += other.Created
	b.Skipped += other.Skipped
}

// StatusTotal aggregates debts sharing a status.
type StatusTotal struct {
	Count     int             `json:"count"`
	Original  decimal.Decimal `json:"original"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Summary is the per-shop debt overview.
type Summary struct {
	ShopID           uuid.UUID                        `json:"shop_id"`
	OutstandingCount int                              `json:"outstanding_count"`
	OutstandingTotal decimal.Decimal                  `json:"outstanding_total"`
	ByStatus         map[enums.DebtStatus]StatusTotal `json:"by_status"`
}

// ServiceParams wires the debt ledger.
type ServiceParams struct {
	Repo           Repository
	Orders         CompletedOrderLister
	Tx             txRunner
	Logger         *logger.Logger
	Metrics        *metrics.LedgerMetrics
	DefaultDueDays int
	Now            func() time.Time
}

type service struct {
	repo    Repository
	orders  CompletedOrderLister
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	dueDays int
	now     func() time.Time
}

// NewService builds the debt ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("debts repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	dueDays := params.DefaultDueDays
	if dueDays <= 0 {
		dueDays = defaultDueDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		orders:  params.Orders,
		tx:      params.Tx,
		logg:    params.Logger,
		metrics: params.Metrics,
		dueDays: dueDays,
		now:     now,
	}, nil
}

func (s *service) CreateDebtRecord(ctx context.Context, order models.Order, remaining decimal.Decimal) (*CreateResult, error) {
	if order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !money.Positive(remaining) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remaining amount must be positive")
	}
	var result *CreateResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lockOrder(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		existing, err := repo.FindByOrderID(ctx, current.ID)
		if err != nil {
			return pkgerrors.FromStore(err, "load debt for order")
		}
		if existing != nil {
			result = &CreateResult{Debt: existing}
			return nil
		}
		if balance := current.Balance(); !remaining.Equal(balance) {
			return pkgerrors.New(pkgerrors.CodeValidation, "remaining amount must equal order amount minus paid amount").
				WithDetails(map[string]any{
					"orderId":   current.ID.String(),
					"remaining": money.Format(remaining),
					"expected":  money.Format(balance),
				})
		}
		result, err = s.create(ctx, tx, *current, remaining, metrics.DebtSourceCompletion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockOrder re-reads the order inside the transaction so the debt is seeded
// from stored amounts rather than a caller's copy.
func (s *service) lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"orderId": orderID.String()})
		}
		return nil, pkgerrors.FromStore(err, "load order")
	}
	return order, nil
}

// CreateForOrderTx creates the debt for an order entering COMPLETED inside
// the caller's transaction. order must be the row the caller holds locked.
// Orders with no positive balance get no debt.
func (s *service) CreateForOrderTx(ctx context.Context, tx *gorm.DB, order models.Order) (*CreateResult, error) {
	remaining := order.Balance()
	if !money.Positive(remaining) {
		return &CreateResult{}, nil
	}
	return s.create(ctx, tx, order, remaining, metrics.DebtSourceCompletion)
}

func (s *service) create(ctx context.Context, tx *gorm.DB, order models.Order, remaining decimal.Decimal, source string) (*CreateResult, error) {
	if order.Status != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "debts are only created for completed orders").
			WithDetails(map[string]any{"orderId": order.ID.String(), "status": order.Status})
	}
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "load debt for order")
	}
	if existing != nil {
		return &CreateResult{Debt: existing}, nil
	}

	completedAt := s.now().UTC()
	if order.CompletedAt != nil && !order.CompletedAt.IsZero() {
		completedAt = order.CompletedAt.UTC()
	}
	debt := NewDebt(order, remaining, completedAt, s.dueDays)

	if err := s.insert(ctx, tx, repo, debt); err != nil {
		if db.IsUniqueViolation(err, "") {
			// a concurrent completion won the race; hand back its record
			existing, findErr := repo.FindByOrderID(ctx, order.ID)
			if findErr != nil || existing == nil {
				return nil, pkgerrors.FromStore(multierr.Append(err, findErr), "load debt after conflict")
			}
			return &CreateResult{Debt: existing}, nil
		}
		return nil, pkgerrors.FromStore(err, "create debt")
	}

	s.metrics.IncDebtCreated(source)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  order.ID.String(),
		"shop_id":   order.ShopID.String(),
		"debt_id":   debt.ID.String(),
		"remaining": money.Format(debt.RemainingAmount),
		"source":    source,
	})
	s.logg.Info(logCtx, "debt.created")
	return &CreateResult{Debt: debt, Created: true}, nil
}

// insert runs the create inside a savepoint on Postgres so a unique
// violation does not abort the surrounding transaction.
func (s *service) insert(ctx context.Context, tx *gorm.DB, repo Repository, debt *models.Debt) error {
	if tx == nil || tx.Dialector.Name() != "postgres" {
		return repo.Create(ctx, debt)
	}
	const savepoint = "debt_create"
	if err := tx.SavePoint(savepoint).Error; err != nil {
		return err
	}
	if err := repo.Create(ctx, debt); err != nil {
		return multierr.Append(err, tx.RollbackTo(savepoint).Error)
	}
	return nil
}

func (s *service) ApplyPayment(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal) (*ApplyResult, error) {
	if debtID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debt id required")
	}
	if !money.Positive(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if !money.WithinScale(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount has more than two decimal places").
			WithDetails(map[string]any{"amount": amount.String()})
	}
	var result *ApplyResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		debt, err := repo.FindByIDForUpdate(ctx, debtID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "debt not found")
			}
			return pkgerrors.FromStore(err, "load debt")
		}
		result, err = s.apply(ctx, repo, debt, amount, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyPaymentForOrderTx applies amount to the order's debt inside the
// caller's transaction. It returns nil, nil when the order has no debt.
func (s *service) ApplyPaymentForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal, paidAt time.Time) (*ApplyResult, error) {
	if !money.Positive(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if !money.WithinScale(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount has more than two decimal places").
			WithDetails(map[string]any{"amount": amount.String()})
	}
	repo := s.repo.WithTx(tx)
	debt, err := repo.FindByOrderIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "load debt for order")
	}
	if debt == nil {
		return nil, nil
	}
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	return s.apply(ctx, repo, debt, amount, paidAt.UTC())
}

func (s *service) apply(ctx context.Context, repo Repository, debt *models.Debt, amount decimal.Decimal, at time.Time) (*ApplyResult, error) {
	expectedPaid := debt.PaidAmount
	result := applyPayment(debt, amount, at)

	updated, err := repo.UpdateBalance(ctx, debt, expectedPaid)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "update debt balance")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "debt changed concurrently; retry the payment").
			WithDetails(map[string]any{"debtId": debt.ID.String()})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"debt_id":   debt.ID.String(),
		"order_id":  debt.OrderID.String(),
		"applied":   money.Format(result.Applied),
		"excess":    money.Format(result.Excess),
		"remaining": money.Format(debt.RemainingAmount),
		"status":    debt.Status,
	})
	s.logg.Info(logCtx, "debt.payment_applied")
	if result.Excess.IsPositive() {
		s.logg.Warn(logCtx, "debt.overpaid")
	}
	return &result, nil
}

func (s *service) Get(ctx context.Context, debtID uuid.UUID) (*models.Debt, error) {
	if debtID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debt id required")
	}
	debt, err := s.repo.FindByID(ctx, debtID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "debt not found")
		}
		return nil, pkgerrors.FromStore(err, "load debt")
	}
	return debt, nil
}

func (s *service) ListOutstanding(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID) ([]models.Debt, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	debts, err := s.repo.ListOutstanding(ctx, shopID, customerID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list outstanding debts")
	}
	return debts, nil
}

func (s *service) ListOverdue(ctx context.Context, shopID uuid.UUID, now time.Time) ([]models.Debt, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if now.IsZero() {
		now = s.now()
	}
	debts, err := s.repo.ListOverdue(ctx, shopID, now.UTC())
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list overdue debts")
	}
	return debts, nil
}

// EnsureDebtRecordsForCompletedOrders creates the missing debt for every
// completed order of the shop that still has a balance. Safe to rerun.
func (s *service) EnsureDebtRecordsForCompletedOrders(ctx context.Context, shopID uuid.UUID) (*BackfillResult, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if s.orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lister not configured")
	}
	ctx = s.logg.WithShopID(ctx, shopID.String())

	orders, err := s.orders.ListCompletedWithBalance(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list completed orders")
	}
	result := &BackfillResult{Scanned: len(orders)}
	if len(orders) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	existing, err := s.repo.OrderIDsWithDebt(ctx, ids)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "load existing debts")
	}

	var errs error
	for _, order := range orders {
		if _, ok := existing[order.ID]; ok {
			result.Skipped++
			continue
		}
		var created *CreateResult
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			current, lockErr := s.lockOrder(ctx, s.repo.WithTx(tx), order.ID)
			if lockErr != nil {
				return lockErr
			}
			remaining := current.Balance()
			if !money.Positive(remaining) {
				created = &CreateResult{}
				return nil
			}
			var createErr error
			created, createErr = s.create(ctx, tx, *current, remaining, metrics.DebtSourceBackfill)
			return createErr
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if created.Created {
			result.Created++
		} else {
			result.Skipped++
		}
		s.logg.Debug(s.logg.WithOrderID(ctx, order.ID.String()), "debt.backfill.order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scanned": result.Scanned,
		"created": result.Created,
		"skipped": result.Skipped,
	})
	if errs != nil {
		s.logg.Error(logCtx, "debt.backfill.partial", errs)
		return result, pkgerrors.FromStore(errs, "backfill debts")
	}
	s.logg.Info(logCtx, "debt.backfill.complete")
	return result, nil
}

// EnsureDebtRecordsForAllShops runs the backfill for every shop with a
// completed unpaid order. A failing shop does not stop the others.
func (s *service) EnsureDebtRecordsForAllShops(ctx context.Context) (*BackfillResult, error) {
	if s.orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lister not configured")
	}
	shopIDs, err := s.orders.ShopIDsWithCompletedBalance(ctx)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list shops for backfill")
	}
	total := &BackfillResult{}
	var errs error
	for _, shopID := range shopIDs {
		result, err := s.EnsureDebtRecordsForCompletedOrders(ctx, shopID)
		total.add(result)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shop %s: %w", shopID, err))
		}
	}
	return total, errs
}

func (s *service) WriteOff(ctx context.Context, debtID uuid.UUID, reason string) (*models.Debt, error) {
	if debtID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debt id required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "write-off reason required")
	}
	var debt *models.Debt
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, debtID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "debt not found")
			}
			return pkgerrors.FromStore(err, "load debt")
		}
		if current.Status == enums.DebtStatusWrittenOff {
			debt = current
			return nil
		}
		if !IsOutstanding(current.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only outstanding debts can be written off").
				WithDetails(map[string]any{"status": current.Status})
		}
		at := s.now().UTC()
		updated, err := repo.MarkWrittenOff(ctx, debtID, reason, at)
		if err != nil {
			return pkgerrors.FromStore(err, "write off debt")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConflict, "debt changed concurrently")
		}
		current.Status = enums.DebtStatusWrittenOff
		current.WrittenOffAt = &at
		current.WriteOffReason = &reason
		debt = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "debt_id", debtID.String()), "debt.written_off")
	return debt, nil
}

func (s *service) Summary(ctx context.Context, shopID uuid.UUID) (*Summary, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	debts, err := s.repo.ListByShop(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list shop debts")
	}
	return Summarize(shopID, debts), nil
}

// Summarize folds debts into per-status totals.
func Summarize(shopID uuid.UUID, debts []models.Debt) *Summary {
	summary := &Summary{
		ShopID:           shopID,
		OutstandingTotal: decimal.Zero,
		ByStatus:         map[enums.DebtStatus]StatusTotal{},
	}
	for _, debt := range debts {
		bucket := summary.ByStatus[debt.Status]
		bucket.Count++
		bucket.Original = bucket.Original.Add(debt.OriginalAmount)
		bucket.Remaining = bucket.Remaining.Add(debt.RemainingAmount)
		summary.ByStatus[debt.Status] = bucket
		if IsOutstanding(debt.Status) {
			summary.OutstandingCount++
			summary.OutstandingTotal = summary.OutstandingTotal.Add(debt.RemainingAmount)
		}
	}
	return summary
}
