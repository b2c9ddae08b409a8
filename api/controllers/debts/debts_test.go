package debts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldebts "github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

// stubDebtService overrides the read and admin paths; the embedded
// interface panics if anything else is reached.
type stubDebtService struct {
	internaldebts.Service
	debts      []models.Debt
	customerID *uuid.UUID
	overdueAt  time.Time
	reason     string
	summary    *internaldebts.Summary
	err        error
}

func (s *stubDebtService) ListOutstanding(_ context.Context, _ uuid.UUID, customerID *uuid.UUID) ([]models.Debt, error) {
	s.customerID = customerID
	return s.debts, s.err
}

func (s *stubDebtService) ListOverdue(_ context.Context, _ uuid.UUID, now time.Time) ([]models.Debt, error) {
	s.overdueAt = now
	return s.debts, s.err
}

func (s *stubDebtService) Get(_ context.Context, debtID uuid.UUID) (*models.Debt, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Debt{ID: debtID, Status: enums.DebtStatusActive}, nil
}

func (s *stubDebtService) Summary(_ context.Context, _ uuid.UUID) (*internaldebts.Summary, error) {
	return s.summary, s.err
}

func (s *stubDebtService) EnsureDebtRecordsForCompletedOrders(_ context.Context, _ uuid.UUID) (*internaldebts.BackfillResult, error) {
	return &internaldebts.BackfillResult{Scanned: 3, Created: 2, Skipped: 1}, s.err
}

func (s *stubDebtService) WriteOff(_ context.Context, debtID uuid.UUID, reason string) (*models.Debt, error) {
	s.reason = reason
	if s.err != nil {
		return nil, s.err
	}
	return &models.Debt{ID: debtID, Status: enums.DebtStatusWrittenOff, WriteOffReason: &reason}, nil
}

func withParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestListOutstandingFiltersByCustomer(t *testing.T) {
	customerID := uuid.New()
	svc := &stubDebtService{debts: []models.Debt{{ID: uuid.New(), CustomerID: customerID, RemainingAmount: decimal.NewFromInt(9)}}}
	req := withParam(httptest.NewRequest(http.MethodGet, "/?customer_id="+customerID.String(), nil), "shopId", uuid.NewString())
	resp := httptest.NewRecorder()

	ListOutstanding(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, svc.customerID)
	assert.Equal(t, customerID, *svc.customerID)
	assert.Contains(t, resp.Body.String(), `"remaining_amount":"9.00"`)
}

func TestListOverdueUsesClockAndCustomer(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	keep, drop := uuid.New(), uuid.New()
	svc := &stubDebtService{debts: []models.Debt{
		{ID: uuid.New(), CustomerID: keep},
		{ID: uuid.New(), CustomerID: drop},
	}}
	req := withParam(httptest.NewRequest(http.MethodGet, "/?overdue=true&customer_id="+keep.String(), nil), "shopId", uuid.NewString())
	resp := httptest.NewRecorder()

	listOutstanding(svc, logger.Nop(), func() time.Time { return now })(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, now, svc.overdueAt)
	var envelope struct {
		Data struct {
			Items []map[string]any `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Items, 1)
	assert.Equal(t, keep.String(), envelope.Data.Items[0]["customer_id"])
}

func TestSummarySortsStatuses(t *testing.T) {
	shopID := uuid.New()
	svc := &stubDebtService{summary: &internaldebts.Summary{
		ShopID:           shopID,
		OutstandingCount: 2,
		OutstandingTotal: decimal.RequireFromString("75.5"),
		ByStatus: map[enums.DebtStatus]internaldebts.StatusTotal{
			enums.DebtStatusPartiallyPaid: {Count: 1, Original: decimal.NewFromInt(50), Remaining: decimal.NewFromInt(25)},
			enums.DebtStatusActive:        {Count: 1, Original: decimal.RequireFromString("50.5"), Remaining: decimal.RequireFromString("50.5")},
		},
	}}
	req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "shopId", shopID.String())
	resp := httptest.NewRecorder()

	Summary(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data summaryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "75.50", envelope.Data.OutstandingTotal.Decimal().StringFixed(2))
	require.Len(t, envelope.Data.ByStatus, 2)
	assert.Equal(t, enums.DebtStatusActive, envelope.Data.ByStatus[0].Status)
	assert.Equal(t, enums.DebtStatusPartiallyPaid, envelope.Data.ByStatus[1].Status)
}

func TestBackfillReportsCounts(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), "shopId", uuid.NewString())
	resp := httptest.NewRecorder()

	Backfill(&stubDebtService{}, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"scanned":3,"created":2,"skipped":1}}`, resp.Body.String())
}

func TestWriteOffRequiresReason(t *testing.T) {
	svc := &stubDebtService{}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":""}`)), "debtId", uuid.NewString())
	resp := httptest.NewRecorder()

	WriteOff(svc, logger.Nop())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.reason)
}

func TestWriteOffTrimsReason(t *testing.T) {
	svc := &stubDebtService{}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"  customer closed shop  "}`)), "debtId", uuid.NewString())
	resp := httptest.NewRecorder()

	WriteOff(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "customer closed shop", svc.reason)
	assert.Contains(t, resp.Body.String(), `"status":"WRITTEN_OFF"`)
}

func TestWriteOffMapsTerminalDebt(t *testing.T) {
	svc := &stubDebtService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "debt already paid")}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"duplicate"}`)), "debtId", uuid.NewString())
	resp := httptest.NewRecorder()

	WriteOff(svc, logger.Nop())(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestDetailMapsNotFound(t *testing.T) {
	svc := &stubDebtService{err: pkgerrors.New(pkgerrors.CodeNotFound, "debt not found")}
	req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "debtId", uuid.NewString())
	resp := httptest.NewRecorder()

	Detail(svc, logger.Nop())(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
