package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// Payment is an immutable record of money received against an order. Status
// is nullable because historical rows were written without it.
type Payment struct {
	ID         uuid.UUID            `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	ShopID     uuid.UUID            `gorm:"column:shop_id;type:uuid;not null;index"`
	CustomerID uuid.UUID            `gorm:"column:customer_id;type:uuid;not null"`
	Amount     decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency   enums.Currency       `gorm:"column:currency;not null"`
	Method     enums.PaymentMethod  `gorm:"column:method;not null"`
	Type       enums.PaymentType    `gorm:"column:type;not null;default:'ORDER_PAYMENT'"`
	Status     *enums.PaymentStatus `gorm:"column:status"`
	Overpaid   bool                 `gorm:"column:overpaid;not null;default:false"`
	PaidAt     time.Time            `gorm:"column:paid_at;not null"`
	Notes      *string              `gorm:"column:notes"`
	RecordedBy *uuid.UUID           `gorm:"column:recorded_by;type:uuid"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
