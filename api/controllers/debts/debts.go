package debts

import (
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/shopledger-backend/api/controllers/views"
	"github.com/angelmondragon/shopledger-backend/api/responses"
	"github.com/angelmondragon/shopledger-backend/api/validators"
	internaldebts "github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/types"
)

type writeOffRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type statusTotal struct {
	Status    enums.DebtStatus `json:"status"`
	Count     int              `json:"count"`
	Original  types.Money      `json:"original"`
	Remaining types.Money      `json:"remaining"`
}

type summaryResponse struct {
	ShopID           string        `json:"shop_id"`
	OutstandingCount int           `json:"outstanding_count"`
	OutstandingTotal types.Money   `json:"outstanding_total"`
	ByStatus         []statusTotal `json:"by_status"`
}

// ListOutstanding returns a shop's ACTIVE and PARTIALLY_PAID debts, optionally
// for one customer. overdue=true narrows to debts past their due date.
func ListOutstanding(svc internaldebts.Service, logg *logger.Logger) http.HandlerFunc {
	return listOutstanding(svc, logg, time.Now)
}

func listOutstanding(svc internaldebts.Service, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := validators.ParseOptionalUUIDQuery(r, "customer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		overdue, err := validators.ParseQueryBool(r, "overdue", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var found []views.Debt
		if overdue {
			debts, err := svc.ListOverdue(r.Context(), shopID, now())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			for _, debt := range debts {
				if customerID != nil && debt.CustomerID != *customerID {
					continue
				}
				found = append(found, views.NewDebt(debt))
			}
		} else {
			debts, err := svc.ListOutstanding(r.Context(), shopID, customerID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			found = views.NewDebts(debts)
		}
		responses.WritePage(w, found, "")
	}
}

func Detail(svc internaldebts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		debtID, err := validators.ParseUUIDParam(r, "debtId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		debt, err := svc.Get(r.Context(), debtID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewDebt(*debt))
	}
}

func Summary(svc internaldebts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := summaryResponse{
			ShopID:           summary.ShopID.String(),
			OutstandingCount: summary.OutstandingCount,
			OutstandingTotal: types.NewMoney(summary.OutstandingTotal),
			ByStatus:         make([]statusTotal, 0, len(summary.ByStatus)),
		}
		for status, total := range summary.ByStatus {
			resp.ByStatus = append(resp.ByStatus, statusTotal{
				Status:    status,
				Count:     total.Count,
				Original:  types.NewMoney(total.Original),
				Remaining: types.NewMoney(total.Remaining),
			})
		}
		sort.Slice(resp.ByStatus, func(i, j int) bool { return resp.ByStatus[i].Status < resp.ByStatus[j].Status })
		responses.WriteSuccess(w, resp)
	}
}

// Backfill creates missing debts for the shop's completed, unpaid orders.
// Running it twice creates nothing the second time.
func Backfill(svc internaldebts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.EnsureDebtRecordsForCompletedOrders(r.Context(), shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func WriteOff(svc internaldebts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		debtID, err := validators.ParseUUIDParam(r, "debtId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req writeOffRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		debt, err := svc.WriteOff(r.Context(), debtID, validators.SanitizeString(req.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewDebt(*debt))
	}
}
