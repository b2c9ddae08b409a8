package billing

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/shopledger-backend/api/responses"
	billingsvc "github.com/angelmondragon/shopledger-backend/internal/billing"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/types"
)

// AnalyticsService serves the platform billing dashboard.
type AnalyticsService interface {
	Dashboard(ctx context.Context) (*billingsvc.Dashboard, error)
	RefreshDashboard(ctx context.Context) (*billingsvc.Dashboard, error)
}

type planCount struct {
	PlanType string `json:"plan_type"`
	Shops    int    `json:"shops"`
}

type dashboardResponse struct {
	TotalShops            int         `json:"total_shops"`
	ActiveShops           int         `json:"active_shops"`
	ActiveSubscriptions   int         `json:"active_subscriptions"`
	TrialSubscriptions    int         `json:"trial_subscriptions"`
	PastDueSubscriptions  int         `json:"past_due_subscriptions"`
	CancelledLast30       int         `json:"cancelled_last_30"`
	MRR                   types.Money `json:"mrr"`
	ARR                   types.Money `json:"arr"`
	ChurnRate             string      `json:"churn_rate"`
	NewShopsThisMonth     int         `json:"new_shops_this_month"`
	NewShopsLastMonth     int         `json:"new_shops_last_month"`
	MonthlyGrowth         string      `json:"monthly_growth"`
	PlanDistribution      []planCount `json:"plan_distribution"`
	AverageRevenuePerShop types.Money `json:"average_revenue_per_shop"`
	UnpricedSubscriptions int         `json:"unpriced_subscriptions"`
	SkippedRecords        int         `json:"skipped_records"`
	IsStale               bool        `json:"is_stale"`
	GeneratedAt           time.Time   `json:"generated_at"`
}

func newDashboardResponse(d *billingsvc.Dashboard) dashboardResponse {
	s := d.Snapshot
	dist := make([]planCount, 0, len(s.PlanDistribution))
	for planType, shops := range s.PlanDistribution {
		dist = append(dist, planCount{PlanType: planType, Shops: shops})
	}
	sort.Slice(dist, func(i, j int) bool { return dist[i].PlanType < dist[j].PlanType })

	return dashboardResponse{
		TotalShops:            s.TotalShops,
		ActiveShops:           s.ActiveShops,
		ActiveSubscriptions:   s.ActiveSubscriptions,
		TrialSubscriptions:    s.TrialSubscriptions,
		PastDueSubscriptions:  s.PastDueSubscriptions,
		CancelledLast30:       s.CancelledLast30,
		MRR:                   types.NewMoney(s.MRR),
		ARR:                   types.NewMoney(s.ARR),
		ChurnRate:             s.ChurnRate.StringFixed(2),
		NewShopsThisMonth:     s.NewShopsThisMonth,
		NewShopsLastMonth:     s.NewShopsLastMonth,
		MonthlyGrowth:         s.MonthlyGrowth.StringFixed(2),
		PlanDistribution:      dist,
		AverageRevenuePerShop: types.NewMoney(s.AverageRevenuePerShop),
		UnpricedSubscriptions: s.UnpricedSubscriptions,
		SkippedRecords:        d.SkippedRecords,
		IsStale:               d.IsStale,
		GeneratedAt:           s.GeneratedAt,
	}
}

// AdminDashboard serves the cached snapshot, computing it on a miss.
func AdminDashboard(svc AnalyticsService, logg *logger.Logger) http.HandlerFunc {
	return dashboardHandler(svc, logg, func(svc AnalyticsService, ctx context.Context) (*billingsvc.Dashboard, error) {
		return svc.Dashboard(ctx)
	})
}

// AdminDashboardRefresh drops the cached snapshot and recomputes it.
func AdminDashboardRefresh(svc AnalyticsService, logg *logger.Logger) http.HandlerFunc {
	return dashboardHandler(svc, logg, func(svc AnalyticsService, ctx context.Context) (*billingsvc.Dashboard, error) {
		return svc.RefreshDashboard(ctx)
	})
}

func dashboardHandler(svc AnalyticsService, logg *logger.Logger, load func(AnalyticsService, context.Context) (*billingsvc.Dashboard, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}
		dashboard, err := load(svc, ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDashboardResponse(dashboard))
	}
}
