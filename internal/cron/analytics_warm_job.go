package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopledger-backend/internal/billing"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

type AnalyticsWarmJobParams struct {
	Logger    *logger.Logger
	Analytics dashboardRefresher
}

type dashboardRefresher interface {
	RefreshDashboard(ctx context.Context) (*billing.Dashboard, error)
}

// NewAnalyticsWarmJob recomputes the admin dashboard so the first request
// after a deploy or TTL expiry does not pay for the full document scan.
func NewAnalyticsWarmJob(params AnalyticsWarmJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Analytics == nil {
		return nil, fmt.Errorf("analytics service required")
	}
	return &analyticsWarmJob{logg: params.Logger, analytics: params.Analytics}, nil
}

type analyticsWarmJob struct {
	logg      *logger.Logger
	analytics dashboardRefresher
}

func (j *analyticsWarmJob) Name() string { return "analytics-warm" }

func (j *analyticsWarmJob) Run(ctx context.Context) error {
	dashboard, err := j.analytics.RefreshDashboard(ctx)
	if err != nil {
		return fmt.Errorf("analytics warm: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"total_shops":     dashboard.Snapshot.TotalShops,
		"mrr":             dashboard.Snapshot.MRR.StringFixed(2),
		"skipped_records": dashboard.SkippedRecords,
	}), "analytics dashboard warmed")
	return nil
}
