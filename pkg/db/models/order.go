package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// Order is a unit of work for a customer. PaidAmount only ever grows.
type Order struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ShopID      uuid.UUID         `gorm:"column:shop_id;type:uuid;not null;index"`
	CustomerID  uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Reference   *string           `gorm:"column:reference"`
	Amount      decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	PaidAmount  decimal.Decimal   `gorm:"column:paid_amount;type:numeric(12,2);not null;default:0"`
	Currency    enums.Currency    `gorm:"column:currency;not null"`
	Status      enums.OrderStatus `gorm:"column:status;not null;default:'PENDING';index"`
	DueDate     *time.Time        `gorm:"column:due_date"`
	CompletedAt *time.Time        `gorm:"column:completed_at"`
	CancelledAt *time.Time        `gorm:"column:cancelled_at"`
	Notes       *string           `gorm:"column:notes"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Balance is amount minus paid amount. It goes negative when the order was overpaid.
func (o Order) Balance() decimal.Decimal {
	return o.Amount.Sub(o.PaidAmount)
}
