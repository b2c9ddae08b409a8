package payments

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/shopledger-backend/api/controllers/views"
	"github.com/angelmondragon/shopledger-backend/api/middleware"
	"github.com/angelmondragon/shopledger-backend/api/responses"
	"github.com/angelmondragon/shopledger-backend/api/validators"
	internalpayments "github.com/angelmondragon/shopledger-backend/internal/payments"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
	"github.com/angelmondragon/shopledger-backend/pkg/types"
)

type moneyRequest struct {
	Amount types.Money         `json:"amount" validate:"positive_money"`
	Method enums.PaymentMethod `json:"method" validate:"required,enum"`
	PaidAt *time.Time          `json:"paid_at,omitempty"`
	Notes  *string             `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type debtUpdate struct {
	Debt           views.Debt       `json:"debt"`
	PreviousStatus enums.DebtStatus `json:"previous_status"`
	Applied        types.Money      `json:"applied"`
	Excess         types.Money      `json:"excess"`
}

type recordPaymentResponse struct {
	Payment  views.Payment `json:"payment"`
	Order    views.Order   `json:"order"`
	Debt     *debtUpdate   `json:"debt_update,omitempty"`
	Overpaid types.Money   `json:"overpaid"`
}

type summaryResponse struct {
	OrderID       string      `json:"order_id"`
	Amount        types.Money `json:"amount"`
	TotalReceived types.Money `json:"total_received"`
	TotalRefunded types.Money `json:"total_refunded"`
	Remaining     types.Money `json:"remaining"`
	Overpaid      types.Money `json:"overpaid"`
	PaymentCount  int         `json:"payment_count"`
}

// Record books a payment against an order. The route sits behind the
// idempotency middleware so a retried request replays the first response.
func Record(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req moneyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalpayments.RecordPaymentInput{
			OrderID: orderID,
			Amount:  req.Amount.Decimal(),
			Method:  req.Method,
			Notes:   validators.SanitizeOptional(req.Notes, 2000),
			ActorID: middleware.ActorIDFromContext(r.Context()),
		}
		if req.PaidAt != nil {
			input.PaidAt = *req.PaidAt
		}
		result, err := svc.RecordPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := recordPaymentResponse{
			Payment:  views.NewPayment(*result.Payment),
			Order:    views.NewOrder(*result.Order),
			Overpaid: types.NewMoney(result.Overpaid),
		}
		if update := result.DebtUpdate; update != nil && update.Debt != nil {
			resp.Debt = &debtUpdate{
				Debt:           views.NewDebt(*update.Debt),
				PreviousStatus: update.PreviousStatus,
				Applied:        types.NewMoney(update.Applied),
				Excess:         types.NewMoney(update.Excess),
			}
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// Refund appends a REFUND row. The order's paid amount is left untouched.
func Refund(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req moneyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalpayments.RecordRefundInput{
			OrderID: orderID,
			Amount:  req.Amount.Decimal(),
			Method:  req.Method,
			Notes:   validators.SanitizeOptional(req.Notes, 2000),
			ActorID: middleware.ActorIDFromContext(r.Context()),
		}
		if req.PaidAt != nil {
			input.RefundAt = *req.PaidAt
		}
		refund, err := svc.RecordRefund(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, views.NewPayment(*refund))
	}
}

func List(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListPayments(r.Context(), orderID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, views.NewPayments(list.Payments), list.NextCursor)
	}
}

func Summary(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summaryResponse{
			OrderID:       summary.OrderID.String(),
			Amount:        types.NewMoney(summary.Amount),
			TotalReceived: types.NewMoney(summary.TotalReceived),
			TotalRefunded: types.NewMoney(summary.TotalRefunded),
			Remaining:     types.NewMoney(summary.Remaining),
			Overpaid:      types.NewMoney(summary.Overpaid),
			PaymentCount:  summary.PaymentCount,
		})
	}
}
