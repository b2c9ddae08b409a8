package subscriptions

import (
	"math"
	"time"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

const day = 24 * time.Hour

// Source says where a State was derived from.
type Source string

const (
	SourceSubscription Source = "subscription"
	SourceLocalTrial   Source = "local_trial"
)

// StateOptions configures trial length and the grace period after expiry.
type StateOptions struct {
	TrialDays int
	GraceDays int
}

// State is the access view of a shop's billing.
type State struct {
	Source          Source                   `json:"source"`
	Status          enums.SubscriptionStatus `json:"status"`
	IsActive        bool                     `json:"is_active"`
	IsLocked        bool                     `json:"is_locked"`
	DaysUntilExpiry int                      `json:"days_until_expiry"`
	ExpiresAt       time.Time                `json:"expires_at"`
	// ExpiredOn is set once the period has ended. DaysUntilExpiry is 0 then.
	ExpiredOn     *time.Time `json:"expired_on,omitempty"`
	InGracePeriod bool       `json:"in_grace_period"`
}

// PeriodEnd is when the subscription stops granting access on its own:
// the trial end for trials, the current period end otherwise.
func PeriodEnd(sub models.Subscription) time.Time {
	if sub.Status == enums.SubscriptionStatusTrial && sub.TrialEndsAt != nil && !sub.TrialEndsAt.IsZero() {
		return sub.TrialEndsAt.UTC()
	}
	return sub.CurrentPeriodEnd.UTC()
}

// Derive computes the access state of a shop. With no subscription the
// shop's own trial, counted from its creation, applies.
func Derive(shop models.Shop, sub *models.Subscription, now time.Time, opts StateOptions) State {
	now = now.UTC()
	grace := time.Duration(max(opts.GraceDays, 0)) * day

	if sub == nil {
		// stays TRIAL after expiry; IsLocked and ExpiredOn carry the lock
		trialEnd := shop.CreatedAt.UTC().Add(time.Duration(max(opts.TrialDays, 0)) * day)
		state := countdown(trialEnd, now, grace)
		state.Source = SourceLocalTrial
		state.Status = enums.SubscriptionStatusTrial
		state.IsActive = now.Before(trialEnd.Add(grace))
		state.IsLocked = !state.IsActive
		return state
	}

	end := PeriodEnd(*sub)
	state := countdown(end, now, grace)
	state.Source = SourceSubscription
	state.Status = sub.Status
	switch sub.Status {
	case enums.SubscriptionStatusActive, enums.SubscriptionStatusTrial, enums.SubscriptionStatusPastDue:
		state.IsActive = now.Before(end.Add(grace))
	case enums.SubscriptionStatusCancelled:
		// paid time is honoured, grace is not
		state.IsActive = now.Before(end)
		state.InGracePeriod = false
	}
	state.IsLocked = !state.IsActive
	return state
}

func countdown(end, now time.Time, grace time.Duration) State {
	state := State{ExpiresAt: end}
	remaining := end.Sub(now)
	if remaining > 0 {
		state.DaysUntilExpiry = int(math.Ceil(remaining.Hours() / 24))
		return state
	}
	expired := end
	state.ExpiredOn = &expired
	state.InGracePeriod = grace > 0 && now.Before(end.Add(grace))
	return state
}

var allowedTransitions = map[enums.SubscriptionStatus][]enums.SubscriptionStatus{
	enums.SubscriptionStatusTrial: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusCancelled,
	},
	enums.SubscriptionStatusActive: {
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusCancelled,
	},
	enums.SubscriptionStatusPastDue: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusCancelled,
	},
}

// CanTransition reports whether a subscription may move between statuses.
func CanTransition(from, to enums.SubscriptionStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// NextPeriodEnd advances start by one billing cycle. Unknown cycles are
// treated as monthly.
func NextPeriodEnd(start time.Time, cycle enums.BillingCycle) time.Time {
	switch cycle {
	case enums.BillingCycleDaily:
		return start.AddDate(0, 0, 1)
	case enums.BillingCycleYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
