package billing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopledger-backend/internal/normalize"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/docstore"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

// Collections read by the dashboard.
const (
	CollectionShops         = "shops"
	CollectionSubscriptions = "subscriptions"
	CollectionPlans         = "billing_plans"
)

// DecodeShop maps a shops row onto the model.
func DecodeShop(doc docstore.Document, now func() time.Time) (models.Shop, error) {
	id, err := documentID(doc, "id")
	if err != nil {
		return models.Shop{}, err
	}
	shop := models.Shop{
		ID:        id,
		Name:      text(doc["name"]),
		Currency:  enums.Currency(strings.ToUpper(text(doc["currency"]))),
		CreatedAt: normalize.ToInstant(doc["created_at"], now),
		UpdatedAt: normalize.ToInstant(doc["updated_at"], now),
	}
	if owner, err := documentID(doc, "owner_id"); err == nil {
		shop.OwnerID = &owner
	}
	return shop, nil
}

// DecodeSubscription maps a subscriptions row onto the model. Optional
// timestamps that cannot be read are left nil.
func DecodeSubscription(doc docstore.Document, now func() time.Time) (models.Subscription, error) {
	id, err := documentID(doc, "id")
	if err != nil {
		return models.Subscription{}, err
	}
	shopID, err := documentID(doc, "shop_id")
	if err != nil {
		return models.Subscription{}, err
	}
	status, err := enums.ParseSubscriptionStatus(strings.ToUpper(text(doc["status"])))
	if err != nil {
		return models.Subscription{}, err
	}
	planID, _ := documentID(doc, "plan_id")

	sub := models.Subscription{
		ID:                 id,
		ShopID:             shopID,
		PlanID:             planID,
		Status:             status,
		BillingCycle:       enums.BillingCycle(strings.ToUpper(text(doc["billing_cycle"]))),
		CurrentPeriodStart: normalize.ToInstant(doc["current_period_start"], now),
		CurrentPeriodEnd:   normalize.ToInstant(doc["current_period_end"], now),
		TrialEndsAt:        optionalInstant(doc["trial_ends_at"]),
		CancelledAt:        optionalInstant(doc["cancelled_at"]),
		CreatedAt:          normalize.ToInstant(doc["created_at"], now),
		UpdatedAt:          normalize.ToInstant(doc["updated_at"], now),
	}
	return sub, nil
}

// DecodePlan maps a billing_plans row onto the model. Features may have been
// stored as an array, an index-keyed map or JSON text.
func DecodePlan(doc docstore.Document, now func() time.Time) (models.BillingPlan, error) {
	id, err := documentID(doc, "id")
	if err != nil {
		return models.BillingPlan{}, err
	}
	price, ok := normalize.Amount(doc["price"])
	if !ok {
		return models.BillingPlan{}, fmt.Errorf("plan %s: unreadable price %v", id, doc["price"])
	}
	plan := models.BillingPlan{
		ID:           id,
		Name:         text(doc["name"]),
		Type:         enums.PlanType(strings.ToUpper(text(doc["type"]))),
		Price:        price,
		Currency:     enums.Currency(strings.ToUpper(text(doc["currency"]))),
		BillingCycle: enums.BillingCycle(strings.ToUpper(text(doc["billing_cycle"]))),
		Features:     normalize.NormalizeFeatures(doc["features"]),
		IsActive:     truthy(doc["is_active"], true),
		CreatedAt:    normalize.ToInstant(doc["created_at"], now),
		UpdatedAt:    normalize.ToInstant(doc["updated_at"], now),
	}
	plan.Limits = models.PlanLimits{
		Customers:   integer(doc["limit_customers"]),
		Orders:      integer(doc["limit_orders"]),
		TeamMembers: integer(doc["limit_team_members"]),
		StorageMB:   integer(doc["limit_storage_mb"]),
	}
	return plan, nil
}

type decoder[T any] func(docstore.Document, func() time.Time) (T, error)

// decodeAll decodes every document it can and counts the rest.
func decodeAll[T any](docs []docstore.Document, decode decoder[T], now func() time.Time) ([]T, int) {
	out := make([]T, 0, len(docs))
	skipped := 0
	for _, doc := range docs {
		value, err := decode(doc, now)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, value)
	}
	return out, skipped
}

func documentID(doc docstore.Document, field string) (uuid.UUID, error) {
	switch v := doc[field].(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return uuid.Nil, fmt.Errorf("%s is empty", field)
		}
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.Parse(string(v))
	case string:
		return uuid.Parse(strings.TrimSpace(v))
	case nil:
		return uuid.Nil, fmt.Errorf("%s missing", field)
	default:
		return uuid.Nil, fmt.Errorf("%s has unsupported type %T", field, v)
	}
}

func optionalInstant(raw any) *time.Time {
	ts := normalize.Parse(raw)
	if !ts.Valid() {
		return nil
	}
	at := ts.Time.UTC()
	return &at
}

func text(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func truthy(raw any, fallback bool) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "1", "yes":
			return true
		case "false", "f", "0", "no":
			return false
		}
	}
	return fallback
}

func integer(raw any) int {
	amount, ok := normalize.Amount(raw)
	if !ok {
		return 0
	}
	return int(amount.IntPart())
}

func sortNewestFirst(subs []models.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}
