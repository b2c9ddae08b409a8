package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdatePayment(ctx context.Context, order *models.Order, expectedPaid decimal.Decimal) (bool, error)
	UpdateStatus(ctx context.Context, order *models.Order, expected enums.OrderStatus) (bool, error)
	List(ctx context.Context, query ListQuery) ([]models.Order, *pagination.Cursor, error)
	ListCompletedWithBalance(ctx context.Context, shopID uuid.UUID) ([]models.Order, error)
	ShopIDsWithCompletedBalance(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row for the rest of the transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdatePayment writes paid_amount and status only if paid_amount still
// equals expectedPaid, so two writers reading the same balance cannot both win.
func (r *repository) UpdatePayment(ctx context.Context, order *models.Order, expectedPaid decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND paid_amount = ?", order.ID, expectedPaid).
		Updates(map[string]any{
			"paid_amount":  order.PaidAmount,
			"status":       order.Status,
			"completed_at": order.CompletedAt,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateStatus moves the order out of expected. It reports false when the
// status changed underneath the caller.
func (r *repository) UpdateStatus(ctx context.Context, order *models.Order, expected enums.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, expected).
		Updates(map[string]any{
			"status":       order.Status,
			"completed_at": order.CompletedAt,
			"cancelled_at": order.CancelledAt,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Order, *pagination.Cursor, error) {
	limit, cursor, err := query.Pagination.Resolve()
	if err != nil {
		return nil, nil, err
	}

	q := r.db.WithContext(ctx).Model(&models.Order{}).Where("shop_id = ?", query.ShopID)
	if query.Filters.Status != nil {
		q = q.Where("status = ?", *query.Filters.Status)
	}
	if query.Filters.CustomerID != nil {
		q = q.Where("customer_id = ?", *query.Filters.CustomerID)
	}
	if cursor != nil {
		clause, args := cursor.Before()
		q = q.Where(clause, args...)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&orders).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(orders, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

func (r *repository) ListCompletedWithBalance(ctx context.Context, shopID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND status = ? AND amount > paid_amount", shopID, enums.OrderStatusCompleted).
		Order("completed_at ASC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ShopIDsWithCompletedBalance(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND amount > paid_amount", enums.OrderStatusCompleted).
		Distinct().
		Pluck("shop_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
