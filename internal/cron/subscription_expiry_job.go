package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopledger-backend/internal/subscriptions"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

type SubscriptionExpiryJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionSweeper
}

type subscriptionSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (*subscriptions.SweepResult, error)
}

func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	return &subscriptionExpiryJob{
		logg:    params.Logger,
		sweeper: params.Subscriptions,
		now:     time.Now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg    *logger.Logger
	sweeper subscriptionSweeper
	now     func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	result, err := j.sweeper.SweepExpired(ctx, now)
	if result != nil {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"as_of":   now,
			"scanned": result.Scanned,
			"expired": result.Expired,
			"failed":  result.Failed,
		}), "subscription expiry sweep complete")
	}
	if err != nil {
		return fmt.Errorf("subscription expiry: %w", err)
	}
	return nil
}
