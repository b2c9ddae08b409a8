package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/internal/billing"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

const sweepBatchSize = 250

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	State(ctx context.Context, shopID uuid.UUID) (*ShopState, error)
	PlanOptions(ctx context.Context, shopID uuid.UUID) ([]PlanOption, error)
	StartTrial(ctx context.Context, shopID, planID uuid.UUID) (*models.Subscription, bool, error)
	Activate(ctx context.Context, shopID uuid.UUID) (*models.Subscription, error)
	Cancel(ctx context.Context, shopID uuid.UUID) (*models.Subscription, error)
	SweepExpired(ctx context.Context, now time.Time) (*SweepResult, error)
}

// ShopState bundles a shop's subscription, its plan and derived access.
type ShopState struct {
	ShopID       uuid.UUID            `json:"shop_id"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
	Plan         *models.BillingPlan  `json:"plan,omitempty"`
	State        State                `json:"state"`
}

// SweepResult counts what an expiry sweep did.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	BillingRepo       billing.Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
	Options           StateOptions
	Now               func() time.Time
}

type service struct {
	billingRepo billing.Repository
	txRunner    txRunner
	logg        *logger.Logger
	opts        StateOptions
	now         func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		billingRepo: params.BillingRepo,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		opts:        params.Options,
		now:         now,
	}, nil
}

func (s *service) State(ctx context.Context, shopID uuid.UUID) (*ShopState, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	shop, err := s.billingRepo.FindShop(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "load shop")
	}
	sub, err := s.billingRepo.FindSubscription(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "load subscription")
	}

	result := &ShopState{
		ShopID:       shopID,
		Subscription: sub,
		State:        Derive(*shop, sub, s.now(), s.opts),
	}
	if sub != nil && sub.PlanID != uuid.Nil {
		plan, err := s.billingRepo.FindBillingPlanByID(ctx, sub.PlanID)
		if err != nil {
			return nil, pkgerrors.FromStore(err, "load billing plan")
		}
		result.Plan = plan
	}
	return result, nil
}

func (s *service) PlanOptions(ctx context.Context, shopID uuid.UUID) ([]PlanOption, error) {
	state, err := s.State(ctx, shopID)
	if err != nil {
		return nil, err
	}
	active := true
	plans, err := s.billingRepo.ListBillingPlans(ctx, billing.ListBillingPlansQuery{IsActive: &active})
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list billing plans")
	}
	return PlanOptions(state.Plan, plans), nil
}

// StartTrial opens a trial on planID. A shop that already has a live
// subscription gets it back with created=false.
func (s *service) StartTrial(ctx context.Context, shopID, planID uuid.UUID) (*models.Subscription, bool, error) {
	if shopID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	if planID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}

	var (
		sub     *models.Subscription
		created bool
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		if _, err := repo.FindShop(ctx, shopID); err != nil {
			return pkgerrors.FromStore(err, "load shop")
		}
		existing, err := repo.FindSubscriptionForUpdate(ctx, shopID)
		if err != nil {
			return pkgerrors.FromStore(err, "load subscription")
		}
		if existing != nil && existing.Status != enums.SubscriptionStatusCancelled {
			sub = existing
			return nil
		}
		plan, err := repo.FindBillingPlanByID(ctx, planID)
		if err != nil {
			return pkgerrors.FromStore(err, "load billing plan")
		}
		if plan == nil || !plan.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "billing plan not found")
		}

		now := s.now().UTC()
		trialEnd := now.Add(time.Duration(max(s.opts.TrialDays, 0)) * day)
		sub = &models.Subscription{
			ShopID:             shopID,
			PlanID:             plan.ID,
			Status:             enums.SubscriptionStatusTrial,
			BillingCycle:       plan.BillingCycle,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   trialEnd,
			TrialEndsAt:        &trialEnd,
		}
		if err := repo.CreateSubscription(ctx, sub); err != nil {
			return pkgerrors.FromStore(err, "create subscription")
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"shop_id":         shopID.String(),
			"subscription_id": sub.ID.String(),
			"plan_id":         planID.String(),
		}), "subscription.trial_started")
	}
	return sub, created, nil
}

// Activate starts a paid period from now.
func (s *service) Activate(ctx context.Context, shopID uuid.UUID) (*models.Subscription, error) {
	return s.transition(ctx, shopID, enums.SubscriptionStatusActive, func(sub *models.Subscription, now time.Time) {
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = NextPeriodEnd(now, sub.BillingCycle)
	})
}

// Cancel stamps the cancellation time that churn is measured from.
// Cancelling twice returns the cancelled subscription unchanged.
func (s *service) Cancel(ctx context.Context, shopID uuid.UUID) (*models.Subscription, error) {
	return s.transition(ctx, shopID, enums.SubscriptionStatusCancelled, func(sub *models.Subscription, now time.Time) {
		sub.CancelledAt = &now
	})
}

func (s *service) transition(ctx context.Context, shopID uuid.UUID, target enums.SubscriptionStatus, mutate func(*models.Subscription, time.Time)) (*models.Subscription, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	var (
		sub     *models.Subscription
		from    enums.SubscriptionStatus
		changed bool
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		var err error
		sub, err = repo.FindSubscriptionForUpdate(ctx, shopID)
		if err != nil {
			return pkgerrors.FromStore(err, "load subscription")
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		from = sub.Status
		if from == target && target == enums.SubscriptionStatusCancelled {
			return nil
		}
		if !CanTransition(from, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription status transition not allowed").
				WithDetails(map[string]any{"from": string(from), "to": string(target)})
		}
		sub.Status = target
		mutate(sub, s.now().UTC())
		ok, err := repo.UpdateSubscriptionStatus(ctx, sub, from)
		if err != nil {
			return pkgerrors.FromStore(err, "update subscription")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription changed concurrently")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"shop_id":         shopID.String(),
			"subscription_id": sub.ID.String(),
			"from":            string(from),
			"to":              string(target),
		}), "subscription.status_changed")
	}
	return sub, nil
}

// SweepExpired moves subscriptions whose paid period or trial has ended to
// PAST_DUE. A row that fails is counted and the sweep carries on.
func (s *service) SweepExpired(ctx context.Context, now time.Time) (*SweepResult, error) {
	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()
	subs, err := s.billingRepo.ListExpirable(ctx, now, sweepBatchSize)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list expirable subscriptions")
	}

	result := &SweepResult{Scanned: len(subs)}
	var errs error
	for i := range subs {
		sub := subs[i]
		from := sub.Status
		sub.Status = enums.SubscriptionStatusPastDue
		ok, err := s.billingRepo.UpdateSubscriptionStatus(ctx, &sub, from)
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			continue
		}
		if !ok {
			// someone else moved it first
			continue
		}
		result.Expired++
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"subscription_id": sub.ID.String(),
			"shop_id":         sub.ShopID.String(),
			"from":            string(from),
		}), "subscription.expired")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scanned": result.Scanned,
		"expired": result.Expired,
		"failed":  result.Failed,
	})
	if errs != nil {
		s.logg.Error(logCtx, "subscription.sweep.partial", errs)
		return result, pkgerrors.FromStore(errs, "expire subscriptions")
	}
	s.logg.Info(logCtx, "subscription.sweep.complete")
	return result, nil
}
