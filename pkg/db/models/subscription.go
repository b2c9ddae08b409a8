package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// Subscription binds a shop to a plan for a billing period.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"type:uuid;primaryKey"`
	ShopID             uuid.UUID                `gorm:"column:shop_id;type:uuid;not null;index"`
	PlanID             uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Status             enums.SubscriptionStatus `gorm:"column:status;not null;index"`
	BillingCycle       enums.BillingCycle       `gorm:"column:billing_cycle;not null"`
	CurrentPeriodStart time.Time                `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd   time.Time                `gorm:"column:current_period_end;not null"`
	TrialEndsAt        *time.Time               `gorm:"column:trial_ends_at"`
	CancelledAt        *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
