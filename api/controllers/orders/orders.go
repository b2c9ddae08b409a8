package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopledger-backend/api/controllers/views"
	"github.com/angelmondragon/shopledger-backend/api/middleware"
	"github.com/angelmondragon/shopledger-backend/api/responses"
	"github.com/angelmondragon/shopledger-backend/api/validators"
	internalorders "github.com/angelmondragon/shopledger-backend/internal/orders"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
	"github.com/angelmondragon/shopledger-backend/pkg/types"
)

type createOrderRequest struct {
	ShopID     uuid.UUID      `json:"shop_id" validate:"required"`
	CustomerID uuid.UUID      `json:"customer_id" validate:"required"`
	Amount     types.Money    `json:"amount" validate:"positive_money"`
	Currency   enums.Currency `json:"currency" validate:"required,enum"`
	DueDate    *time.Time     `json:"due_date,omitempty"`
	Reference  *string        `json:"reference,omitempty" validate:"omitempty,max=120"`
	Notes      *string        `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type transitionRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required,enum"`
}

type transitionResponse struct {
	Order       views.Order `json:"order"`
	Changed     bool        `json:"changed"`
	Debt        *views.Debt `json:"debt,omitempty"`
	DebtCreated bool        `json:"debt_created"`
}

// Create opens a new PENDING order.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			ShopID:     req.ShopID,
			CustomerID: req.CustomerID,
			Amount:     req.Amount.Decimal(),
			Currency:   req.Currency,
			DueDate:    req.DueDate,
			Reference:  validators.SanitizeOptional(req.Reference, 120),
			Notes:      validators.SanitizeOptional(req.Notes, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, views.NewOrder(*order))
	}
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewOrder(*order))
	}
}

// Transition moves an order through its lifecycle. Completing an order with
// a balance opens its debt in the same transaction.
func Transition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.TransitionStatus(r.Context(), internalorders.TransitionInput{
			OrderID: orderID,
			Target:  req.Status,
			ActorID: middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transitionResponse{
			Order:       views.NewOrder(*result.Order),
			Changed:     result.Changed,
			Debt:        views.NewDebtPtr(result.Debt),
			DebtCreated: result.DebtCreated,
		})
	}
}

// List pages a shop's orders newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := validators.ParseOptionalUUIDQuery(r, "customer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := internalorders.ListFilters{CustomerID: customerID}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseOrderStatus(strings.ToUpper(raw))
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.List(r.Context(), internalorders.ListQuery{
			ShopID:  shopID,
			Filters: filters,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, views.NewOrders(list.Orders), list.NextCursor)
	}
}
