package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

const (
	defaultWindow       = 30 * 24 * time.Hour
	defaultDaysPerMonth = 30
)

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// AnalyticsOptions tunes the trailing windows used by ComputeAnalytics.
// Zero values fall back to 30 days and 30 days per month.
type AnalyticsOptions struct {
	ChurnWindow  time.Duration
	GrowthWindow time.Duration
	DaysPerMonth int
}

func (o AnalyticsOptions) withDefaults() AnalyticsOptions {
	if o.ChurnWindow <= 0 {
		o.ChurnWindow = defaultWindow
	}
	if o.GrowthWindow <= 0 {
		o.GrowthWindow = defaultWindow
	}
	if o.DaysPerMonth <= 0 {
		o.DaysPerMonth = defaultDaysPerMonth
	}
	return o
}

// Snapshot is the platform-wide billing dashboard.
type Snapshot struct {
	TotalShops            int             `json:"total_shops"`
	ActiveShops           int             `json:"active_shops"`
	ActiveSubscriptions   int             `json:"active_subscriptions"`
	TrialSubscriptions    int             `json:"trial_subscriptions"`
	PastDueSubscriptions  int             `json:"past_due_subscriptions"`
	CancelledLast30       int             `json:"cancelled_last_30"`
	MRR                   decimal.Decimal `json:"mrr"`
	ARR                   decimal.Decimal `json:"arr"`
	ChurnRate             decimal.Decimal `json:"churn_rate"`
	NewShopsThisMonth     int             `json:"new_shops_this_month"`
	NewShopsLastMonth     int             `json:"new_shops_last_month"`
	MonthlyGrowth         decimal.Decimal `json:"monthly_growth"`
	PlanDistribution      map[string]int  `json:"plan_distribution"`
	AverageRevenuePerShop decimal.Decimal `json:"average_revenue_per_shop"`
	// UnpricedSubscriptions counts active subscriptions whose plan could
	// not be resolved. They add nothing to MRR.
	UnpricedSubscriptions int       `json:"unpriced_subscriptions"`
	GeneratedAt           time.Time `json:"generated_at"`
}

// MonthlyPrice converts a price billed every cycle to its monthly
// equivalent. Unknown cycles are worth nothing.
func MonthlyPrice(price decimal.Decimal, cycle enums.BillingCycle, daysPerMonth int) (decimal.Decimal, bool) {
	switch cycle {
	case enums.BillingCycleMonthly:
		return price, true
	case enums.BillingCycleYearly:
		return price.Div(monthsPerYear), true
	case enums.BillingCycleDaily:
		return price.Mul(decimal.NewFromInt(int64(daysPerMonth))), true
	default:
		return decimal.Zero, false
	}
}

// CurrentSubscriptions keeps the first subscription seen for each shop.
// Subscriptions with no shop are kept as-is.
func CurrentSubscriptions(subscriptions []models.Subscription) []models.Subscription {
	seen := make(map[uuid.UUID]struct{}, len(subscriptions))
	current := make([]models.Subscription, 0, len(subscriptions))
	for _, sub := range subscriptions {
		if sub.ShopID != uuid.Nil {
			if _, ok := seen[sub.ShopID]; ok {
				continue
			}
			seen[sub.ShopID] = struct{}{}
		}
		current = append(current, sub)
	}
	return current
}

// ComputeAnalytics derives the billing dashboard from raw collections. It
// reads nothing but its arguments. Records that cannot be priced are
// skipped rather than failing the whole snapshot.
func ComputeAnalytics(shops []models.Shop, subscriptions []models.Subscription, plans []models.BillingPlan, now time.Time, opts AnalyticsOptions) Snapshot {
	opts = opts.withDefaults()
	now = now.UTC()

	plansByID := make(map[uuid.UUID]models.BillingPlan, len(plans))
	for _, plan := range plans {
		plansByID[plan.ID] = plan
	}

	snapshot := Snapshot{
		TotalShops:            len(shops),
		MRR:                   decimal.Zero,
		ARR:                   decimal.Zero,
		ChurnRate:             decimal.Zero,
		MonthlyGrowth:         decimal.Zero,
		AverageRevenuePerShop: decimal.Zero,
		PlanDistribution:      map[string]int{},
		GeneratedAt:           now,
	}

	activeShops := map[uuid.UUID]struct{}{}
	for _, sub := range CurrentSubscriptions(subscriptions) {
		switch sub.Status {
		case enums.SubscriptionStatusActive:
			snapshot.ActiveSubscriptions++
			if sub.ShopID != uuid.Nil {
				activeShops[sub.ShopID] = struct{}{}
			}
			plan, ok := plansByID[sub.PlanID]
			if !ok {
				snapshot.UnpricedSubscriptions++
				continue
			}
			cycle := plan.BillingCycle
			if cycle == "" {
				cycle = sub.BillingCycle
			}
			monthly, priced := MonthlyPrice(plan.Price, cycle, opts.DaysPerMonth)
			if !priced {
				snapshot.UnpricedSubscriptions++
			}
			snapshot.MRR = snapshot.MRR.Add(monthly)
			snapshot.PlanDistribution[plan.Name]++
		case enums.SubscriptionStatusTrial:
			snapshot.TrialSubscriptions++
		case enums.SubscriptionStatusPastDue:
			snapshot.PastDueSubscriptions++
		}
	}
	// churn counts every cancellation in the window, including shops that
	// have since subscribed again
	for _, sub := range subscriptions {
		if sub.Status != enums.SubscriptionStatusCancelled || sub.CancelledAt == nil {
			continue
		}
		if within(now, *sub.CancelledAt, 0, opts.ChurnWindow, true) {
			snapshot.CancelledLast30++
		}
	}
	snapshot.ActiveShops = len(activeShops)
	snapshot.ARR = snapshot.MRR.Mul(monthsPerYear)

	denominator := snapshot.ActiveSubscriptions + snapshot.CancelledLast30
	if denominator > 0 {
		snapshot.ChurnRate = ratio(snapshot.CancelledLast30, denominator)
	}

	for _, shop := range shops {
		switch {
		case within(now, shop.CreatedAt, 0, opts.GrowthWindow, true):
			snapshot.NewShopsThisMonth++
		case within(now, shop.CreatedAt, opts.GrowthWindow, 2*opts.GrowthWindow, false):
			snapshot.NewShopsLastMonth++
		}
	}
	if snapshot.NewShopsLastMonth > 0 {
		snapshot.MonthlyGrowth = ratio(snapshot.NewShopsThisMonth-snapshot.NewShopsLastMonth, snapshot.NewShopsLastMonth)
	}

	if snapshot.ActiveShops > 0 {
		snapshot.AverageRevenuePerShop = snapshot.MRR.Div(decimal.NewFromInt(int64(snapshot.ActiveShops)))
	}
	return snapshot
}

// within reports whether at lies between from and to before now. The lower
// bound is inclusive; the upper bound only when closed is set.
func within(now, at time.Time, from, to time.Duration, closed bool) bool {
	if at.IsZero() {
		return false
	}
	age := now.Sub(at)
	if age < from {
		return false
	}
	if closed {
		return age <= to
	}
	return age < to
}

func ratio(numerator, denominator int) decimal.Decimal {
	return decimal.NewFromInt(int64(numerator)).
		Div(decimal.NewFromInt(int64(denominator))).
		Mul(hundred)
}
