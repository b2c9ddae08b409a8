package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// Repository handles billing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateShop(ctx context.Context, shop *models.Shop) error
	FindShop(ctx context.Context, shopID uuid.UUID) (*models.Shop, error)
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscriptionStatus(ctx context.Context, subscription *models.Subscription, expected enums.SubscriptionStatus) (bool, error)
	FindSubscription(ctx context.Context, shopID uuid.UUID) (*models.Subscription, error)
	FindSubscriptionForUpdate(ctx context.Context, shopID uuid.UUID) (*models.Subscription, error)
	ListSubscriptionsByShop(ctx context.Context, shopID uuid.UUID) ([]models.Subscription, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
	CreateBillingPlan(ctx context.Context, plan *models.BillingPlan) error
	UpdateBillingPlan(ctx context.Context, plan *models.BillingPlan) error
	ListBillingPlans(ctx context.Context, params ListBillingPlansQuery) ([]models.BillingPlan, error)
	FindBillingPlanByID(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error)
}

type repository struct {
	db *gorm.DB
}

// ListBillingPlansQuery configures billing plan list queries.
type ListBillingPlansQuery struct {
	IsActive *bool
	Type     *enums.PlanType
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateShop(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *repository) FindShop(ctx context.Context, shopID uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", shopID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

// UpdateSubscriptionStatus writes the status and period fields only while
// the row is still in expected.
func (r *repository) UpdateSubscriptionStatus(ctx context.Context, subscription *models.Subscription, expected enums.SubscriptionStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", subscription.ID, expected).
		Updates(map[string]any{
			"status":               subscription.Status,
			"current_period_start": subscription.CurrentPeriodStart,
			"current_period_end":   subscription.CurrentPeriodEnd,
			"cancelled_at":         subscription.CancelledAt,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindSubscription returns the newest subscription for the shop, or nil.
func (r *repository) FindSubscription(ctx context.Context, shopID uuid.UUID) (*models.Subscription, error) {
	return r.findSubscription(r.db.WithContext(ctx), shopID)
}

func (r *repository) FindSubscriptionForUpdate(ctx context.Context, shopID uuid.UUID) (*models.Subscription, error) {
	return r.findSubscription(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), shopID)
}

func (r *repository) findSubscription(q *gorm.DB, shopID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := q.
		Where("shop_id = ?", shopID).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListSubscriptionsByShop(ctx context.Context, shopID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListExpirable returns ACTIVE subscriptions whose period ended and TRIAL
// subscriptions whose trial ended before now.
func (r *repository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 250
	}
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("(status = ? AND current_period_end < ?) OR (status = ? AND COALESCE(trial_ends_at, current_period_end) < ?)",
			enums.SubscriptionStatusActive, now,
			enums.SubscriptionStatusTrial, now).
		Order("current_period_end ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) CreateBillingPlan(ctx context.Context, plan *models.BillingPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) UpdateBillingPlan(ctx context.Context, plan *models.BillingPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *repository) ListBillingPlans(ctx context.Context, params ListBillingPlansQuery) ([]models.BillingPlan, error) {
	query := r.db.WithContext(ctx).Model(&models.BillingPlan{})
	if params.IsActive != nil {
		query = query.Where("is_active = ?", *params.IsActive)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}

	var plans []models.BillingPlan
	if err := query.Order("price ASC, name ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindBillingPlanByID(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
