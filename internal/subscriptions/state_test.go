package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

var stateNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func TestDeriveLocalTrial(t *testing.T) {
	opts := StateOptions{TrialDays: 14}

	fresh := Derive(models.Shop{CreatedAt: stateNow.Add(-36 * time.Hour)}, nil, stateNow, opts)
	assert.Equal(t, SourceLocalTrial, fresh.Source)
	assert.Equal(t, enums.SubscriptionStatusTrial, fresh.Status)
	assert.True(t, fresh.IsActive)
	assert.False(t, fresh.IsLocked)
	// 12.5 days left rounds up
	assert.Equal(t, 13, fresh.DaysUntilExpiry)
	assert.Nil(t, fresh.ExpiredOn)

	expired := Derive(models.Shop{CreatedAt: stateNow.AddDate(0, 0, -20)}, nil, stateNow, opts)
	assert.Equal(t, SourceLocalTrial, expired.Source)
	assert.Equal(t, enums.SubscriptionStatusTrial, expired.Status)
	assert.False(t, expired.IsActive)
	assert.True(t, expired.IsLocked)
	assert.Zero(t, expired.DaysUntilExpiry)
	require.NotNil(t, expired.ExpiredOn)
	assert.Equal(t, stateNow.AddDate(0, 0, -6), *expired.ExpiredOn)
}

func TestDeriveActiveSubscription(t *testing.T) {
	sub := &models.Subscription{
		Status:           enums.SubscriptionStatusActive,
		CurrentPeriodEnd: stateNow.Add(72 * time.Hour),
	}
	state := Derive(models.Shop{}, sub, stateNow, StateOptions{})
	assert.True(t, state.IsActive)
	assert.Equal(t, 3, state.DaysUntilExpiry)
	assert.Equal(t, SourceSubscription, state.Source)
}

func TestDeriveExpiredWithGrace(t *testing.T) {
	sub := &models.Subscription{
		Status:           enums.SubscriptionStatusPastDue,
		CurrentPeriodEnd: stateNow.Add(-24 * time.Hour),
	}

	withGrace := Derive(models.Shop{}, sub, stateNow, StateOptions{GraceDays: 3})
	assert.True(t, withGrace.IsActive)
	assert.True(t, withGrace.InGracePeriod)
	assert.Zero(t, withGrace.DaysUntilExpiry)
	require.NotNil(t, withGrace.ExpiredOn)

	noGrace := Derive(models.Shop{}, sub, stateNow, StateOptions{})
	assert.False(t, noGrace.IsActive)
	assert.True(t, noGrace.IsLocked)
	assert.False(t, noGrace.InGracePeriod)
}

func TestDeriveTrialUsesTrialEnd(t *testing.T) {
	trialEnd := stateNow.Add(-time.Hour)
	sub := &models.Subscription{
		Status:           enums.SubscriptionStatusTrial,
		CurrentPeriodEnd: stateNow.AddDate(0, 1, 0),
		TrialEndsAt:      &trialEnd,
	}
	state := Derive(models.Shop{}, sub, stateNow, StateOptions{})
	assert.True(t, state.IsLocked)
	require.NotNil(t, state.ExpiredOn)
	assert.Equal(t, trialEnd, *state.ExpiredOn)
}

func TestDeriveCancelledHonoursPaidTime(t *testing.T) {
	sub := &models.Subscription{
		Status:           enums.SubscriptionStatusCancelled,
		CurrentPeriodEnd: stateNow.Add(48 * time.Hour),
	}
	assert.True(t, Derive(models.Shop{}, sub, stateNow, StateOptions{GraceDays: 5}).IsActive)

	sub.CurrentPeriodEnd = stateNow.Add(-time.Hour)
	state := Derive(models.Shop{}, sub, stateNow, StateOptions{GraceDays: 5})
	assert.False(t, state.IsActive)
	assert.False(t, state.InGracePeriod)
}

func TestSubscriptionCanTransition(t *testing.T) {
	assert.True(t, CanTransition(enums.SubscriptionStatusTrial, enums.SubscriptionStatusActive))
	assert.True(t, CanTransition(enums.SubscriptionStatusActive, enums.SubscriptionStatusPastDue))
	assert.True(t, CanTransition(enums.SubscriptionStatusPastDue, enums.SubscriptionStatusActive))
	assert.False(t, CanTransition(enums.SubscriptionStatusCancelled, enums.SubscriptionStatusActive))
	assert.False(t, CanTransition(enums.SubscriptionStatusActive, enums.SubscriptionStatusTrial))
}

func TestNextPeriodEnd(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start.AddDate(0, 0, 1), NextPeriodEnd(start, enums.BillingCycleDaily))
	assert.Equal(t, start.AddDate(0, 1, 0), NextPeriodEnd(start, enums.BillingCycleMonthly))
	assert.Equal(t, start.AddDate(1, 0, 0), NextPeriodEnd(start, enums.BillingCycleYearly))
	assert.Equal(t, start.AddDate(0, 1, 0), NextPeriodEnd(start, ""))
}
