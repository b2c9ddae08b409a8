package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
)

// Repository manages persistence for payments. Payments are append-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	ListPage(ctx context.Context, orderID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) ListPage(ctx context.Context, orderID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Cursor, error) {
	limit, cursor, err := params.Resolve()
	if err != nil {
		return nil, nil, err
	}
	q := r.db.WithContext(ctx).Model(&models.Payment{}).Where("order_id = ?", orderID)
	if cursor != nil {
		clause, args := cursor.Before()
		q = q.Where(clause, args...)
	}

	var payments []models.Payment
	if err := q.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&payments).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(payments, limit, func(p models.Payment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}
