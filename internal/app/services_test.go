package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopledger-backend/internal/orders"
	"github.com/angelmondragon/shopledger-backend/internal/payments"
	"github.com/angelmondragon/shopledger-backend/pkg/config"
	"github.com/angelmondragon/shopledger-backend/pkg/db"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Billing: config.BillingConfig{
			TrialDays:    14,
			ChurnWindow:  30 * 24 * time.Hour,
			GrowthWindow: 30 * 24 * time.Hour,
			DaysPerMonth: 30,
		},
		Debt:  config.DebtConfig{DefaultDueDays: 30},
		Cache: config.CacheConfig{AnalyticsTTL: time.Minute, AnalyticsMaxEntries: 8},
	}
}

func newTestServices(t *testing.T, reg prometheus.Registerer) *Services {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenSQLite("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	services, err := NewServices(Params{
		Config:     testConfig(),
		Logger:     logger.Nop(),
		DB:         db.FromGorm(conn),
		Registerer: reg,
		Now:        func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return services
}

func TestNewServicesRequiresDependencies(t *testing.T) {
	_, err := NewServices(Params{})
	require.Error(t, err)

	_, err = NewServices(Params{Config: testConfig(), Logger: logger.Nop()})
	require.Error(t, err)
}

func TestServicesShareOneLedger(t *testing.T) {
	reg := prometheus.NewRegistry()
	services := newTestServices(t, reg)
	ctx := context.Background()
	shopID := uuid.New()

	order, err := services.Orders.Create(ctx, orders.CreateOrderInput{
		ShopID:     shopID,
		CustomerID: uuid.New(),
		Amount:     decimal.NewFromInt(250),
		Currency:   enums.CurrencyUSD,
	})
	require.NoError(t, err)

	transition, err := services.Orders.TransitionStatus(ctx, orders.TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusCompleted,
	})
	require.NoError(t, err)
	require.True(t, transition.DebtCreated)

	_, err = services.Payments.RecordPayment(ctx, payments.RecordPaymentInput{
		OrderID: order.ID,
		Amount:  decimal.NewFromInt(100),
		Method:  enums.PaymentMethodCash,
	})
	require.NoError(t, err)

	summary, err := services.Debts.Summary(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OutstandingCount)
	assert.True(t, summary.OutstandingTotal.Equal(decimal.NewFromInt(150)), summary.OutstandingTotal.String())

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["payments_recorded_total"])
	assert.True(t, names["debts_created_total"])
}

func TestDashboardServedFromProcessCache(t *testing.T) {
	services := newTestServices(t, nil)
	ctx := context.Background()

	first, err := services.Billing.Dashboard(ctx)
	require.NoError(t, err)
	assert.False(t, first.IsStale)
	assert.Equal(t, 0, first.Snapshot.TotalShops)

	refreshed, err := services.Billing.RefreshDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, testNow, refreshed.Snapshot.GeneratedAt)
}
