package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingsvc "github.com/angelmondragon/shopledger-backend/internal/billing"
	"github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/internal/orders"
	"github.com/angelmondragon/shopledger-backend/internal/payments"
	"github.com/angelmondragon/shopledger-backend/internal/subscriptions"
	"github.com/angelmondragon/shopledger-backend/pkg/config"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubOrders struct {
	orders.Service
	creates int
	actor   *uuid.UUID
}

func (s *stubOrders) Create(_ context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	s.creates++
	return &models.Order{ID: uuid.New(), ShopID: input.ShopID, Amount: input.Amount, Status: enums.OrderStatusPending}, nil
}

func (s *stubOrders) TransitionStatus(_ context.Context, input orders.TransitionInput) (*orders.TransitionResult, error) {
	s.actor = input.ActorID
	return &orders.TransitionResult{Order: &models.Order{ID: input.OrderID, Status: input.Target}, Changed: true}, nil
}

type stubPayments struct{ payments.Service }

type stubDebts struct{ debts.Service }

func (stubDebts) Summary(_ context.Context, shopID uuid.UUID) (*debts.Summary, error) {
	return &debts.Summary{ShopID: shopID, OutstandingTotal: decimal.Zero}, nil
}

type stubSubscriptions struct{ subscriptions.Service }

type stubBilling struct{}

func (stubBilling) CreatePlan(context.Context, billingsvc.CreatePlanInput) (*models.BillingPlan, error) {
	return &models.BillingPlan{}, nil
}

func (stubBilling) UpdatePlan(context.Context, uuid.UUID, billingsvc.UpdatePlanInput) (*models.BillingPlan, error) {
	return &models.BillingPlan{}, nil
}

func (stubBilling) GetPlan(context.Context, uuid.UUID) (*models.BillingPlan, error) {
	return &models.BillingPlan{}, nil
}

func (stubBilling) ListPlans(context.Context, bool) ([]models.BillingPlan, error) {
	return []models.BillingPlan{{ID: uuid.New(), Name: "Free"}}, nil
}

func (stubBilling) Dashboard(context.Context) (*billingsvc.Dashboard, error) {
	return &billingsvc.Dashboard{}, nil
}

func (stubBilling) RefreshDashboard(context.Context) (*billingsvc.Dashboard, error) {
	return &billingsvc.Dashboard{}, nil
}

type harness struct {
	handler http.Handler
	orders  *stubOrders
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	cfg := &config.Config{App: config.AppConfig{Env: "test", CORSOrigins: []string{"https://admin.example.com"}}}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"}))

	ordersSvc := &stubOrders{}
	handler := NewRouter(
		cfg,
		logger.Nop(),
		stubPinger{},
		stubPinger{},
		client,
		registry,
		ordersSvc,
		stubPayments{},
		stubDebts{},
		stubSubscriptions{},
		stubBilling{},
	)
	return harness{handler: handler, orders: ordersSvc}
}

func (h harness) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	resp = h.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "router_test_total")
}

func TestCreateOrderRequiresIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	body := `{"shop_id":"` + uuid.NewString() + `","customer_id":"` + uuid.NewString() + `","amount":"10","currency":"USD"}`

	resp := h.do(http.MethodPost, "/api/v1/orders", body, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 0, h.orders.creates)
}

func TestCreateOrderReplaysDuplicate(t *testing.T) {
	h := newHarness(t)
	body := `{"shop_id":"` + uuid.NewString() + `","customer_id":"` + uuid.NewString() + `","amount":"10","currency":"USD"}`
	headers := map[string]string{"Idempotency-Key": "order-1"}

	first := h.do(http.MethodPost, "/api/v1/orders", body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := h.do(http.MethodPost, "/api/v1/orders", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, 1, h.orders.creates)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestActorHeaderReachesHandler(t *testing.T) {
	h := newHarness(t)
	actorID := uuid.New()
	orderID := uuid.New()

	resp := h.do(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/status", `{"status":"IN_PROGRESS"}`, map[string]string{
		"Idempotency-Key": "status-1",
		"X-Actor-Id":      actorID.String(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, h.orders.actor)
	assert.Equal(t, actorID, *h.orders.actor)

	resp = h.do(http.MethodGet, "/api/v1/plans", "", map[string]string{"X-Actor-Id": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReadRoutesSkipIdempotency(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/api/v1/shops/"+uuid.NewString()+"/debts/summary", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = h.do(http.MethodGet, "/api/admin/v1/analytics", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(http.MethodGet, "/api/v1/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	resp := h.do(http.MethodOptions, "/api/v1/orders", "", map[string]string{
		"Origin":                        "https://admin.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, "https://admin.example.com", resp.Header().Get("Access-Control-Allow-Origin"))
}
