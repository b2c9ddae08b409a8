package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopledger-backend/api/controllers/views"
	"github.com/angelmondragon/shopledger-backend/api/responses"
	"github.com/angelmondragon/shopledger-backend/api/validators"
	billingsvc "github.com/angelmondragon/shopledger-backend/internal/billing"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/types"
)

// PlanService describes the billing plan methods used by the HTTP controllers.
type PlanService interface {
	CreatePlan(ctx context.Context, input billingsvc.CreatePlanInput) (*models.BillingPlan, error)
	UpdatePlan(ctx context.Context, planID uuid.UUID, input billingsvc.UpdatePlanInput) (*models.BillingPlan, error)
	GetPlan(ctx context.Context, planID uuid.UUID) (*models.BillingPlan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]models.BillingPlan, error)
}

type planLimitsRequest struct {
	Customers   int `json:"customers" validate:"gte=0"`
	Orders      int `json:"orders" validate:"gte=0"`
	TeamMembers int `json:"team_members" validate:"gte=0"`
	StorageMB   int `json:"storage" validate:"gte=0"`
}

func (l planLimitsRequest) toModel() models.PlanLimits {
	return models.PlanLimits{
		Customers:   l.Customers,
		Orders:      l.Orders,
		TeamMembers: l.TeamMembers,
		StorageMB:   l.StorageMB,
	}
}

type createPlanRequest struct {
	Name         string             `json:"name" validate:"required,max=120"`
	Type         enums.PlanType     `json:"type" validate:"required,enum"`
	Price        types.Money        `json:"price"`
	Currency     enums.Currency     `json:"currency" validate:"omitempty,enum"`
	BillingCycle enums.BillingCycle `json:"billing_cycle" validate:"required,enum"`
	Features     []string           `json:"features" validate:"omitempty,max=50,dive,max=200"`
	Limits       planLimitsRequest  `json:"limits"`
}

type updatePlanRequest struct {
	Name     *string            `json:"name,omitempty" validate:"omitempty,max=120"`
	Price    *types.Money       `json:"price,omitempty"`
	Features []string           `json:"features,omitempty" validate:"omitempty,max=50,dive,max=200"`
	Limits   *planLimitsRequest `json:"limits,omitempty"`
	IsActive *bool              `json:"is_active,omitempty"`
}

// PlansList serves the plan catalogue. Only active plans are listed unless
// include_inactive=true.
func PlansList(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing plan service unavailable"))
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		plans, err := svc.ListPlans(ctx, !includeInactive)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewPlans(plans))
	}
}

func PlanDetail(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing plan service unavailable"))
			return
		}
		planID, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		plan, err := svc.GetPlan(ctx, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewPlan(*plan))
	}
}

func AdminPlanCreate(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing plan service unavailable"))
			return
		}
		var payload createPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		plan, err := svc.CreatePlan(ctx, billingsvc.CreatePlanInput{
			Name:         validators.SanitizeString(payload.Name, 120),
			Type:         payload.Type,
			Price:        payload.Price.Decimal(),
			Currency:     payload.Currency,
			BillingCycle: payload.BillingCycle,
			Features:     payload.Features,
			Limits:       payload.Limits.toModel(),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, views.NewPlan(*plan))
	}
}

func AdminPlanUpdate(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing plan service unavailable"))
			return
		}
		planID, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload updatePlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := billingsvc.UpdatePlanInput{
			Name:     validators.SanitizeOptional(payload.Name, 120),
			Features: payload.Features,
			IsActive: payload.IsActive,
		}
		if payload.Price != nil {
			price := payload.Price.Decimal()
			input.Price = &price
		}
		if payload.Limits != nil {
			limits := payload.Limits.toModel()
			input.Limits = &limits
		}

		plan, err := svc.UpdatePlan(ctx, planID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewPlan(*plan))
	}
}
