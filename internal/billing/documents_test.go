package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopledger-backend/pkg/docstore"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

func fixedNow() time.Time { return analyticsNow }

func TestDecodePlanNormalizesLooseShapes(t *testing.T) {
	id := uuid.New()
	plan, err := DecodePlan(docstore.Document{
		"id":              id.String(),
		"name":            " Pro ",
		"type":            "professional",
		"price":           "1,200.00",
		"billing_cycle":   "yearly",
		"features":        map[string]any{"1": "reports", "0": "orders", "10": "api"},
		"is_active":       int64(1),
		"limit_customers": float64(500),
		"created_at":      map[string]any{"_seconds": float64(1717200000), "_nanoseconds": float64(0)},
		"updated_at":      "2024-06-01T00:00:00Z",
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, id, plan.ID)
	assert.Equal(t, "Pro", plan.Name)
	assert.Equal(t, enums.PlanTypeProfessional, plan.Type)
	assert.Equal(t, enums.BillingCycleYearly, plan.BillingCycle)
	assert.True(t, decimal.NewFromInt(1200).Equal(plan.Price))
	assert.Equal(t, []string{"orders", "reports", "api"}, []string(plan.Features))
	assert.True(t, plan.IsActive)
	assert.Equal(t, 500, plan.Limits.Customers)
	assert.Equal(t, time.Unix(1717200000, 0).UTC(), plan.CreatedAt.UTC())
}

func TestDecodePlanRejectsUnreadablePrice(t *testing.T) {
	_, err := DecodePlan(docstore.Document{"id": uuid.NewString(), "price": "free"}, fixedNow)
	require.Error(t, err)
}

func TestDecodeSubscription(t *testing.T) {
	id, shopID, planID := uuid.New(), uuid.New(), uuid.New()
	sub, err := DecodeSubscription(docstore.Document{
		"id":                   id.String(),
		"shop_id":              []byte(shopID.String()),
		"plan_id":              planID.String(),
		"status":               "active",
		"billing_cycle":        "MONTHLY",
		"current_period_start": int64(1717200000000),
		"current_period_end":   "2024-07-01",
		"cancelled_at":         nil,
		"trial_ends_at":        "not a date",
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, shopID, sub.ShopID)
	assert.Equal(t, planID, sub.PlanID)
	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, time.UnixMilli(1717200000000).UTC(), sub.CurrentPeriodStart.UTC())
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), sub.CurrentPeriodEnd.UTC())
	assert.Nil(t, sub.CancelledAt)
	assert.Nil(t, sub.TrialEndsAt)
	// missing timestamps fall back to the clock
	assert.Equal(t, analyticsNow, sub.CreatedAt)
}

func TestDecodeAllSkipsBrokenRecords(t *testing.T) {
	docs := []docstore.Document{
		{"id": uuid.NewString(), "name": "ok", "created_at": "2024-06-01T00:00:00Z"},
		{"id": "not-a-uuid"},
		{"name": "missing id"},
	}
	shops, skipped := decodeAll(docs, DecodeShop, fixedNow)
	assert.Len(t, shops, 1)
	assert.Equal(t, 2, skipped)
}
