package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
)

// CreateOrderInput captures a new order for a customer.
type CreateOrderInput struct {
	ShopID     uuid.UUID
	CustomerID uuid.UUID
	Amount     decimal.Decimal
	Currency   enums.Currency
	DueDate    *time.Time
	Reference  *string
	Notes      *string
}

// TransitionInput asks the guard to move an order to Target.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	ActorID *uuid.UUID
}

// TransitionResult is the order after the transition plus any debt that
// completion produced or found.
type TransitionResult struct {
	Order       *models.Order
	Changed     bool
	Debt        *models.Debt
	DebtCreated bool
}

// ListFilters narrow the shop order list.
type ListFilters struct {
	Status     *enums.OrderStatus
	CustomerID *uuid.UUID
}

// ListQuery is a paginated shop order query.
type ListQuery struct {
	ShopID     uuid.UUID
	Filters    ListFilters
	Pagination pagination.Params
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
