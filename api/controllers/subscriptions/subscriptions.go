package subscriptions

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopledger-backend/api/controllers/views"
	"github.com/angelmondragon/shopledger-backend/api/responses"
	"github.com/angelmondragon/shopledger-backend/api/validators"
	internalsubs "github.com/angelmondragon/shopledger-backend/internal/subscriptions"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

type startTrialRequest struct {
	PlanID uuid.UUID `json:"plan_id" validate:"required"`
}

type stateResponse struct {
	ShopID       uuid.UUID           `json:"shop_id"`
	Subscription *views.Subscription `json:"subscription,omitempty"`
	Plan         *views.Plan         `json:"plan,omitempty"`
	State        internalsubs.State  `json:"state"`
}

type planOption struct {
	Plan   views.Plan          `json:"plan"`
	Change internalsubs.Change `json:"change"`
}

type trialResponse struct {
	Subscription *views.Subscription `json:"subscription"`
	Created      bool                `json:"created"`
}

func newStateResponse(state *internalsubs.ShopState) stateResponse {
	resp := stateResponse{
		ShopID:       state.ShopID,
		Subscription: views.NewSubscription(state.Subscription),
		State:        state.State,
	}
	if state.Plan != nil {
		plan := views.NewPlan(*state.Plan)
		resp.Plan = &plan
	}
	return resp
}

// State reports whether the shop currently has access and why.
func State(svc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := svc.State(r.Context(), shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStateResponse(state))
	}
}

func PlanOptions(svc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		options, err := svc.PlanOptions(r.Context(), shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]planOption, 0, len(options))
		for _, opt := range options {
			out = append(out, planOption{Plan: views.NewPlan(opt.Plan), Change: opt.Change})
		}
		responses.WriteSuccess(w, out)
	}
}

// StartTrial answers 201 when a trial was created and 200 when the shop
// already had a current subscription.
func StartTrial(svc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req startTrialRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, created, err := svc.StartTrial(r.Context(), shopID, req.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, trialResponse{
			Subscription: views.NewSubscription(sub),
			Created:      created,
		})
	}
}

func Activate(svc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Activate(r.Context(), shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewSubscription(sub))
	}
}

func Cancel(svc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Cancel(r.Context(), shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewSubscription(sub))
	}
}
