package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	billingsvc "github.com/angelmondragon/shopledger-backend/internal/billing"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

type stubPlanService struct {
	created    billingsvc.CreatePlanInput
	updated    billingsvc.UpdatePlanInput
	updatedID  uuid.UUID
	activeOnly *bool
	plans      []models.BillingPlan
	found      *models.BillingPlan
	err        error
}

func (s *stubPlanService) CreatePlan(_ context.Context, input billingsvc.CreatePlanInput) (*models.BillingPlan, error) {
	s.created = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.BillingPlan{
		ID:           uuid.New(),
		Name:         input.Name,
		Type:         input.Type,
		Price:        input.Price,
		Currency:     enums.CurrencyUSD,
		BillingCycle: input.BillingCycle,
		Features:     pq.StringArray(input.Features),
		Limits:       input.Limits,
		IsActive:     true,
	}, nil
}

func (s *stubPlanService) UpdatePlan(_ context.Context, planID uuid.UUID, input billingsvc.UpdatePlanInput) (*models.BillingPlan, error) {
	s.updatedID = planID
	s.updated = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.BillingPlan{ID: planID, Name: "Updated"}, nil
}

func (s *stubPlanService) GetPlan(_ context.Context, _ uuid.UUID) (*models.BillingPlan, error) {
	return s.found, s.err
}

func (s *stubPlanService) ListPlans(_ context.Context, activeOnly bool) ([]models.BillingPlan, error) {
	s.activeOnly = &activeOnly
	return s.plans, s.err
}

func withPlanID(req *http.Request, planID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("planId", planID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestPlansListDefaultsToActive(t *testing.T) {
	svc := &stubPlanService{plans: []models.BillingPlan{{ID: uuid.New(), Name: "Starter", Price: decimal.RequireFromString("9.9")}}}
	resp := httptest.NewRecorder()
	PlansList(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if svc.activeOnly == nil || !*svc.activeOnly {
		t.Fatalf("expected active-only listing")
	}
	if !strings.Contains(resp.Body.String(), `"price":"9.90"`) {
		t.Fatalf("expected formatted price, got %s", resp.Body.String())
	}
}

func TestPlansListIncludesInactiveOnRequest(t *testing.T) {
	svc := &stubPlanService{}
	resp := httptest.NewRecorder()
	PlansList(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/plans?include_inactive=true", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if svc.activeOnly == nil || *svc.activeOnly {
		t.Fatalf("expected inactive plans to be included")
	}
}

func TestPlanDetailNotFound(t *testing.T) {
	svc := &stubPlanService{err: pkgerrors.New(pkgerrors.CodeNotFound, "billing plan not found")}
	resp := httptest.NewRecorder()
	PlanDetail(svc, logger.Nop())(resp, withPlanID(httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString()))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAdminPlanCreateParsesPayload(t *testing.T) {
	svc := &stubPlanService{}
	body := `{
		"name": "  Growth  ",
		"type": "PROFESSIONAL",
		"price": "29.00",
		"billing_cycle": "MONTHLY",
		"features": ["reports", "exports"],
		"limits": {"customers": 500, "orders": 0, "team_members": 5, "storage": 1024}
	}`
	resp := httptest.NewRecorder()
	AdminPlanCreate(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/plans", strings.NewReader(body)))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created.Name != "Growth" {
		t.Fatalf("expected trimmed name, got %q", svc.created.Name)
	}
	if !svc.created.Price.Equal(decimal.NewFromInt(29)) {
		t.Fatalf("unexpected price %s", svc.created.Price)
	}
	if svc.created.Limits.TeamMembers != 5 || svc.created.Limits.StorageMB != 1024 {
		t.Fatalf("unexpected limits %+v", svc.created.Limits)
	}

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["price"] != "29.00" {
		t.Fatalf("expected price 29.00, got %v", envelope.Data["price"])
	}
}

func TestAdminPlanCreateRejectsBadCycle(t *testing.T) {
	svc := &stubPlanService{}
	body := `{"name":"X","type":"PROFESSIONAL","price":"1","billing_cycle":"HOURLY"}`
	resp := httptest.NewRecorder()
	AdminPlanCreate(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if svc.created.Name != "" {
		t.Fatalf("service should not be called")
	}
}

func TestAdminPlanUpdatePatchesOnlyProvidedFields(t *testing.T) {
	svc := &stubPlanService{}
	planID := uuid.New()
	body := `{"price":"15.5","is_active":false}`
	req := withPlanID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body)), planID.String())
	resp := httptest.NewRecorder()

	AdminPlanUpdate(svc, logger.Nop())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.updatedID != planID {
		t.Fatalf("unexpected plan id %s", svc.updatedID)
	}
	if svc.updated.Name != nil || svc.updated.Limits != nil || svc.updated.Features != nil {
		t.Fatalf("expected untouched fields to stay nil: %+v", svc.updated)
	}
	if svc.updated.Price == nil || !svc.updated.Price.Equal(decimal.RequireFromString("15.5")) {
		t.Fatalf("unexpected price %v", svc.updated.Price)
	}
	if svc.updated.IsActive == nil || *svc.updated.IsActive {
		t.Fatalf("expected is_active=false")
	}
}

func TestNilPlanServiceIsInternalError(t *testing.T) {
	resp := httptest.NewRecorder()
	PlansList(nil, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
