package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// Shop is the tenant that owns orders, debts and a subscription.
type Shop struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Currency  enums.Currency `gorm:"column:currency;not null;default:'USD'"`
	OwnerID   *uuid.UUID     `gorm:"column:owner_id;type:uuid"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shop) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
