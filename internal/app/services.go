// Package app assembles the service graph shared by the API and cron binaries.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/shopledger-backend/internal/billing"
	"github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/internal/orders"
	"github.com/angelmondragon/shopledger-backend/internal/payments"
	"github.com/angelmondragon/shopledger-backend/internal/subscriptions"
	"github.com/angelmondragon/shopledger-backend/pkg/config"
	"github.com/angelmondragon/shopledger-backend/pkg/db"
	"github.com/angelmondragon/shopledger-backend/pkg/docstore"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/metrics"
)

// Services is every domain service a binary may need.
type Services struct {
	Orders        orders.Service
	Payments      payments.Service
	Debts         debts.Service
	Subscriptions subscriptions.Service
	Billing       *billing.Service
	Metrics       *metrics.LedgerMetrics
}

// Params are the connections the services are built on. Shared is
// optional; without it the dashboard is cached per process only.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Shared     billing.SharedCache
	Registerer prometheus.Registerer
	Now        func() time.Time
}

func NewServices(params Params) (*Services, error) {
	if params.Config == nil {
		return nil, errors.New("config required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db client required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	conn := params.DB.DB()
	ledgerMetrics := metrics.NewLedgerMetrics(params.Registerer)

	ordersRepo := orders.NewRepository(conn)
	debtsService, err := debts.NewService(debts.ServiceParams{
		Repo:           debts.NewRepository(conn),
		Orders:         ordersRepo,
		Tx:             params.DB,
		Logger:         params.Logger,
		Metrics:        ledgerMetrics,
		DefaultDueDays: cfg.Debt.DefaultDueDays,
		Now:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("debts service: %w", err)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:   ordersRepo,
		Debts:  debtsService,
		Tx:     params.DB,
		Logger: params.Logger,
		Now:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:    payments.NewRepository(conn),
		Orders:  ordersRepo,
		Debts:   debtsService,
		Tx:      params.DB,
		Logger:  params.Logger,
		Metrics: ledgerMetrics,
		Now:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	billingRepo := billing.NewRepository(conn)
	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		BillingRepo:       billingRepo,
		TransactionRunner: params.DB,
		Logger:            params.Logger,
		Options: subscriptions.StateOptions{
			TrialDays: cfg.Billing.TrialDays,
			GraceDays: cfg.Billing.GraceDays,
		},
		Now: now,
	})
	if err != nil {
		return nil, fmt.Errorf("subscriptions service: %w", err)
	}

	documents, err := docstore.NewGormStore(conn, now)
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}
	dashboardCache, err := billing.NewDashboardCache(cfg.Cache.AnalyticsTTL, cfg.Cache.AnalyticsMaxEntries, now, ledgerMetrics)
	if err != nil {
		return nil, fmt.Errorf("dashboard cache: %w", err)
	}
	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:      billingRepo,
		Documents: documents,
		Cache:     dashboardCache,
		Shared:    params.Shared,
		SharedTTL: cfg.Cache.SharedTTL,
		Options: billing.AnalyticsOptions{
			ChurnWindow:  cfg.Billing.ChurnWindow,
			GrowthWindow: cfg.Billing.GrowthWindow,
			DaysPerMonth: cfg.Billing.DaysPerMonth,
		},
		Logger: params.Logger,
		Now:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("billing service: %w", err)
	}

	return &Services{
		Orders:        ordersService,
		Payments:      paymentsService,
		Debts:         debtsService,
		Subscriptions: subscriptionsService,
		Billing:       billingService,
		Metrics:       ledgerMetrics,
	}, nil
}
