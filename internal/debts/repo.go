package debts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// Repository handles debt persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, debt *models.Debt) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Debt, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Debt, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Debt, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Debt, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateBalance(ctx context.Context, debt *models.Debt, expectedPaid decimal.Decimal) (bool, error)
	MarkWrittenOff(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
	ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.Debt, error)
	ListOutstanding(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID) ([]models.Debt, error)
	ListOverdue(ctx context.Context, shopID uuid.UUID, now time.Time) ([]models.Debt, error)
	OrderIDsWithDebt(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
}

type repository struct {
	db *gorm.DB
}

var outstandingStatuses = []enums.DebtStatus{
	enums.DebtStatusActive,
	enums.DebtStatusPartiallyPaid,
}

// NewRepository returns a debt repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, debt *models.Debt) error {
	return r.db.WithContext(ctx).Create(debt).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Debt, error) {
	return r.findOne(ctx, false, "id = ?", id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Debt, error) {
	return r.findOne(ctx, true, "id = ?", id)
}

// FindByOrderID returns nil, nil when the order has no debt.
func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Debt, error) {
	debt, err := r.findOne(ctx, false, "order_id = ?", orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return debt, err
}

// FindByOrderIDForUpdate returns nil, nil when the order has no debt.
func (r *repository) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Debt, error) {
	debt, err := r.findOne(ctx, true, "order_id = ?", orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return debt, err
}

// FindOrderForUpdate locks the order a debt is derived from.
func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) findOne(ctx context.Context, lock bool, query string, args ...any) (*models.Debt, error) {
	var debt models.Debt
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where(query, args...).Take(&debt).Error; err != nil {
		return nil, err
	}
	return &debt, nil
}

// UpdateBalance persists paid/remaining/status only if paid_amount still
// equals expectedPaid. It reports false when another writer got there first.
func (r *repository) UpdateBalance(ctx context.Context, debt *models.Debt, expectedPaid decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Debt{}).
		Where("id = ? AND paid_amount = ?", debt.ID, expectedPaid).
		Updates(map[string]any{
			"paid_amount":      debt.PaidAmount,
			"remaining_amount": debt.RemainingAmount,
			"status":           debt.Status,
			"last_payment_at":  debt.LastPaymentAt,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkWrittenOff flips an outstanding debt to WRITTEN_OFF.
func (r *repository) MarkWrittenOff(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Debt{}).
		Where("id = ? AND status IN ?", id, outstandingStatuses).
		Updates(map[string]any{
			"status":           enums.DebtStatusWrittenOff,
			"written_off_at":   at,
			"write_off_reason": reason,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.Debt, error) {
	var debts []models.Debt
	if err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("due_date ASC, created_at ASC").
		Find(&debts).Error; err != nil {
		return nil, err
	}
	return debts, nil
}

func (r *repository) ListOutstanding(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID) ([]models.Debt, error) {
	query := r.db.WithContext(ctx).
		Where("shop_id = ? AND status IN ?", shopID, outstandingStatuses)
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}
	var debts []models.Debt
	if err := query.Order("due_date ASC, created_at ASC").Find(&debts).Error; err != nil {
		return nil, err
	}
	return debts, nil
}

func (r *repository) ListOverdue(ctx context.Context, shopID uuid.UUID, now time.Time) ([]models.Debt, error) {
	var debts []models.Debt
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND status IN ? AND due_date < ?", shopID, outstandingStatuses, now).
		Order("due_date ASC").
		Find(&debts).Error; err != nil {
		return nil, err
	}
	return debts, nil
}

func (r *repository) OrderIDsWithDebt(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	found := make(map[uuid.UUID]struct{}, len(orderIDs))
	if len(orderIDs) == 0 {
		return found, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Debt{}).
		Where("order_id IN ?", orderIDs).
		Pluck("order_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		found[id] = struct{}{}
	}
	return found, nil
}
