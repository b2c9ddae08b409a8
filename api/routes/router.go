package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopledger-backend/api/controllers"
	billingcontrollers "github.com/angelmondragon/shopledger-backend/api/controllers/billing"
	debtcontrollers "github.com/angelmondragon/shopledger-backend/api/controllers/debts"
	ordercontrollers "github.com/angelmondragon/shopledger-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/shopledger-backend/api/controllers/payments"
	subscriptioncontrollers "github.com/angelmondragon/shopledger-backend/api/controllers/subscriptions"
	"github.com/angelmondragon/shopledger-backend/api/middleware"
	"github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/internal/orders"
	"github.com/angelmondragon/shopledger-backend/internal/payments"
	"github.com/angelmondragon/shopledger-backend/internal/subscriptions"
	"github.com/angelmondragon/shopledger-backend/pkg/config"
	"github.com/angelmondragon/shopledger-backend/pkg/db"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/redis"
)

// BillingService is the plan catalogue plus the dashboard.
type BillingService interface {
	billingcontrollers.PlanService
	billingcontrollers.AnalyticsService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idempotencyStore redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	ordersService orders.Service,
	paymentsService payments.Service,
	debtsService debts.Service,
	subscriptionsService subscriptions.Service,
	billingService BillingService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Create(ordersService, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
				r.Post("/{orderId}/status", ordercontrollers.Transition(ordersService, logg))
				r.Get("/{orderId}/payments", paymentcontrollers.List(paymentsService, logg))
				r.Post("/{orderId}/payments", paymentcontrollers.Record(paymentsService, logg))
				r.Get("/{orderId}/payments/summary", paymentcontrollers.Summary(paymentsService, logg))
				r.Post("/{orderId}/refunds", paymentcontrollers.Refund(paymentsService, logg))
			})

			r.Route("/shops/{shopId}", func(r chi.Router) {
				r.Get("/orders", ordercontrollers.List(ordersService, logg))
				r.Route("/debts", func(r chi.Router) {
					r.Get("/", debtcontrollers.ListOutstanding(debtsService, logg))
					r.Get("/summary", debtcontrollers.Summary(debtsService, logg))
					r.Post("/backfill", debtcontrollers.Backfill(debtsService, logg))
				})
				r.Route("/subscription", func(r chi.Router) {
					r.Get("/", subscriptioncontrollers.State(subscriptionsService, logg))
					r.Post("/trial", subscriptioncontrollers.StartTrial(subscriptionsService, logg))
					r.Post("/activate", subscriptioncontrollers.Activate(subscriptionsService, logg))
					r.Post("/cancel", subscriptioncontrollers.Cancel(subscriptionsService, logg))
				})
				r.Get("/plan-options", subscriptioncontrollers.PlanOptions(subscriptionsService, logg))
			})

			r.Route("/debts/{debtId}", func(r chi.Router) {
				r.Get("/", debtcontrollers.Detail(debtsService, logg))
				r.Post("/write-off", debtcontrollers.WriteOff(debtsService, logg))
			})

			r.Route("/plans", func(r chi.Router) {
				r.Get("/", billingcontrollers.PlansList(billingService, logg))
				r.Get("/{planId}", billingcontrollers.PlanDetail(billingService, logg))
			})
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Get("/analytics", billingcontrollers.AdminDashboard(billingService, logg))
			r.Post("/analytics/refresh", billingcontrollers.AdminDashboardRefresh(billingService, logg))
			r.Post("/plans", billingcontrollers.AdminPlanCreate(billingService, logg))
			r.Patch("/plans/{planId}", billingcontrollers.AdminPlanUpdate(billingService, logg))
		})
	})

	return r
}
