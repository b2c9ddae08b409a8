package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// Debt tracks the outstanding balance of an order that completed unpaid.
// The unique index on order_id keeps it at one per order.
type Debt struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ShopID             uuid.UUID        `gorm:"column:shop_id;type:uuid;not null;index"`
	CustomerID         uuid.UUID        `gorm:"column:customer_id;type:uuid;not null;index"`
	OrderID            uuid.UUID        `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_debts_order_id"`
	OriginalAmount     decimal.Decimal  `gorm:"column:original_amount;type:numeric(12,2);not null"`
	PaidAmount         decimal.Decimal  `gorm:"column:paid_amount;type:numeric(12,2);not null;default:0"`
	RemainingAmount    decimal.Decimal  `gorm:"column:remaining_amount;type:numeric(12,2);not null"`
	Currency           enums.Currency   `gorm:"column:currency;not null"`
	Status             enums.DebtStatus `gorm:"column:status;not null;index"`
	OrderCompletedDate time.Time        `gorm:"column:order_completed_date;not null"`
	DueDate            time.Time        `gorm:"column:due_date;not null;index"`
	LastPaymentAt      *time.Time       `gorm:"column:last_payment_at"`
	WrittenOffAt       *time.Time       `gorm:"column:written_off_at"`
	WriteOffReason     *string          `gorm:"column:write_off_reason"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Debt) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
