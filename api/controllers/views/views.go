// Package views maps persisted models to their public JSON shape. Money is
// always rendered as a two decimal string.
package views

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/money"
	"github.com/angelmondragon/shopledger-backend/pkg/types"
)

type Order struct {
	ID          uuid.UUID         `json:"id"`
	ShopID      uuid.UUID         `json:"shop_id"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	Reference   *string           `json:"reference,omitempty"`
	Amount      types.Money       `json:"amount"`
	PaidAmount  types.Money       `json:"paid_amount"`
	Balance     types.Money       `json:"balance"`
	Currency    enums.Currency    `json:"currency"`
	Status      enums.OrderStatus `json:"status"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	Notes       *string           `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func NewOrder(o models.Order) Order {
	return Order{
		ID:          o.ID,
		ShopID:      o.ShopID,
		CustomerID:  o.CustomerID,
		Reference:   o.Reference,
		Amount:      types.NewMoney(o.Amount),
		PaidAmount:  types.NewMoney(o.PaidAmount),
		Balance:     types.NewMoney(money.ClampZero(o.Balance())),
		Currency:    o.Currency,
		Status:      o.Status,
		DueDate:     o.DueDate,
		CompletedAt: o.CompletedAt,
		CancelledAt: o.CancelledAt,
		Notes:       o.Notes,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func NewOrders(orders []models.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrder(o))
	}
	return out
}

type Payment struct {
	ID         uuid.UUID            `json:"id"`
	OrderID    uuid.UUID            `json:"order_id"`
	ShopID     uuid.UUID            `json:"shop_id"`
	CustomerID uuid.UUID            `json:"customer_id"`
	Amount     types.Money          `json:"amount"`
	Currency   enums.Currency       `json:"currency"`
	Method     enums.PaymentMethod  `json:"method"`
	Type       enums.PaymentType    `json:"type"`
	Status     *enums.PaymentStatus `json:"status"`
	Overpaid   bool                 `json:"overpaid"`
	PaidAt     time.Time            `json:"paid_at"`
	Notes      *string              `json:"notes,omitempty"`
	RecordedBy *uuid.UUID           `json:"recorded_by,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

func NewPayment(p models.Payment) Payment {
	return Payment{
		ID:         p.ID,
		OrderID:    p.OrderID,
		ShopID:     p.ShopID,
		CustomerID: p.CustomerID,
		Amount:     types.NewMoney(p.Amount),
		Currency:   p.Currency,
		Method:     p.Method,
		Type:       p.Type,
		Status:     p.Status,
		Overpaid:   p.Overpaid,
		PaidAt:     p.PaidAt,
		Notes:      p.Notes,
		RecordedBy: p.RecordedBy,
		CreatedAt:  p.CreatedAt,
	}
}

func NewPayments(payments []models.Payment) []Payment {
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, NewPayment(p))
	}
	return out
}

type Debt struct {
	ID                 uuid.UUID        `json:"id"`
	ShopID             uuid.UUID        `json:"shop_id"`
	CustomerID         uuid.UUID        `json:"customer_id"`
	OrderID            uuid.UUID        `json:"order_id"`
	OriginalAmount     types.Money      `json:"original_amount"`
	PaidAmount         types.Money      `json:"paid_amount"`
	RemainingAmount    types.Money      `json:"remaining_amount"`
	Currency           enums.Currency   `json:"currency"`
	Status             enums.DebtStatus `json:"status"`
	OrderCompletedDate time.Time        `json:"order_completed_date"`
	DueDate            time.Time        `json:"due_date"`
	LastPaymentAt      *time.Time       `json:"last_payment_at,omitempty"`
	WrittenOffAt       *time.Time       `json:"written_off_at,omitempty"`
	WriteOffReason     *string          `json:"write_off_reason,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func NewDebt(d models.Debt) Debt {
	return Debt{
		ID:                 d.ID,
		ShopID:             d.ShopID,
		CustomerID:         d.CustomerID,
		OrderID:            d.OrderID,
		OriginalAmount:     types.NewMoney(d.OriginalAmount),
		PaidAmount:         types.NewMoney(d.PaidAmount),
		RemainingAmount:    types.NewMoney(d.RemainingAmount),
		Currency:           d.Currency,
		Status:             d.Status,
		OrderCompletedDate: d.OrderCompletedDate,
		DueDate:            d.DueDate,
		LastPaymentAt:      d.LastPaymentAt,
		WrittenOffAt:       d.WrittenOffAt,
		WriteOffReason:     d.WriteOffReason,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// NewDebtPtr returns nil for a nil debt.
func NewDebtPtr(d *models.Debt) *Debt {
	if d == nil {
		return nil
	}
	view := NewDebt(*d)
	return &view
}

func NewDebts(debts []models.Debt) []Debt {
	out := make([]Debt, 0, len(debts))
	for _, d := range debts {
		out = append(out, NewDebt(d))
	}
	return out
}

type Plan struct {
	ID           uuid.UUID          `json:"id"`
	Name         string             `json:"name"`
	Type         enums.PlanType     `json:"type"`
	Price        types.Money        `json:"price"`
	Currency     enums.Currency     `json:"currency"`
	BillingCycle enums.BillingCycle `json:"billing_cycle"`
	Features     []string           `json:"features"`
	Limits       models.PlanLimits  `json:"limits"`
	IsActive     bool               `json:"is_active"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func NewPlan(p models.BillingPlan) Plan {
	features := []string(p.Features)
	if features == nil {
		features = []string{}
	}
	return Plan{
		ID:           p.ID,
		Name:         p.Name,
		Type:         p.Type,
		Price:        types.NewMoney(p.Price),
		Currency:     p.Currency,
		BillingCycle: p.BillingCycle,
		Features:     features,
		Limits:       p.Limits,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func NewPlans(plans []models.BillingPlan) []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, NewPlan(p))
	}
	return out
}

type Subscription struct {
	ID                 uuid.UUID                `json:"id"`
	ShopID             uuid.UUID                `json:"shop_id"`
	PlanID             uuid.UUID                `json:"plan_id"`
	Status             enums.SubscriptionStatus `json:"status"`
	BillingCycle       enums.BillingCycle       `json:"billing_cycle"`
	CurrentPeriodStart time.Time                `json:"current_period_start"`
	CurrentPeriodEnd   time.Time                `json:"current_period_end"`
	TrialEndsAt        *time.Time               `json:"trial_ends_at,omitempty"`
	CancelledAt        *time.Time               `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
}

func NewSubscription(s *models.Subscription) *Subscription {
	if s == nil {
		return nil
	}
	return &Subscription{
		ID:                 s.ID,
		ShopID:             s.ShopID,
		PlanID:             s.PlanID,
		Status:             s.Status,
		BillingCycle:       s.BillingCycle,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		TrialEndsAt:        s.TrialEndsAt,
		CancelledAt:        s.CancelledAt,
		CreatedAt:          s.CreatedAt,
	}
}
