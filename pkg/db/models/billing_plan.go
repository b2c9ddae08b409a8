package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// PlanLimits caps usage per plan. Zero means unlimited.
type PlanLimits struct {
	Customers   int `gorm:"column:customers;not null;default:0" json:"customers"`
	Orders      int `gorm:"column:orders;not null;default:0" json:"orders"`
	TeamMembers int `gorm:"column:team_members;not null;default:0" json:"team_members"`
	StorageMB   int `gorm:"column:storage_mb;not null;default:0" json:"storage"`
}

// BillingPlan is a priceable tier.
type BillingPlan struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Name         string             `gorm:"column:name;not null"`
	Type         enums.PlanType     `gorm:"column:type;not null"`
	Price        decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Currency     enums.Currency     `gorm:"column:currency;not null"`
	BillingCycle enums.BillingCycle `gorm:"column:billing_cycle;not null"`
	Features     pq.StringArray     `gorm:"column:features;type:text[]"`
	Limits       PlanLimits         `gorm:"embedded;embeddedPrefix:limit_"`
	IsActive     bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *BillingPlan) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
