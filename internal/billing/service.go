package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/shopledger-backend/internal/normalize"
	"github.com/angelmondragon/shopledger-backend/pkg/cache"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/docstore"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/metrics"
	"github.com/angelmondragon/shopledger-backend/pkg/money"
	"github.com/angelmondragon/shopledger-backend/pkg/redis"
)

const dashboardKey = "analytics:dashboard"

// SharedCache is the cross-replica tier in front of the snapshot loader.
type SharedCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// Dashboard is a snapshot plus how it was served.
type Dashboard struct {
	Snapshot Snapshot `json:"snapshot"`
	// IsStale is set when a refresh failed and an older snapshot was served.
	IsStale bool `json:"is_stale"`
	// SkippedRecords counts documents that could not be decoded.
	SkippedRecords int `json:"skipped_records"`
}

// CreatePlanInput captures a new billing plan.
type CreatePlanInput struct {
	Name         string
	Type         enums.PlanType
	Price        decimal.Decimal
	Currency     enums.Currency
	BillingCycle enums.BillingCycle
	Features     []string
	Limits       models.PlanLimits
}

// UpdatePlanInput patches a billing plan. Nil fields are left alone.
type UpdatePlanInput struct {
	Name     *string
	Price    *decimal.Decimal
	Features []string
	Limits   *models.PlanLimits
	IsActive *bool
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo      Repository
	Documents docstore.Store
	Cache     *cache.Cache[Dashboard]
	Shared    SharedCache
	SharedTTL time.Duration
	Options   AnalyticsOptions
	Logger    *logger.Logger
	Now       func() time.Time
}

// Service serves billing plans and the platform dashboard.
type Service struct {
	repo      Repository
	documents docstore.Store
	cache     *cache.Cache[Dashboard]
	shared    SharedCache
	sharedTTL time.Duration
	opts      AnalyticsOptions
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Documents == nil {
		return nil, errors.New("document store is required")
	}
	if params.Cache == nil {
		return nil, errors.New("dashboard cache is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      params.Repo,
		documents: params.Documents,
		cache:     params.Cache,
		shared:    params.Shared,
		sharedTTL: params.SharedTTL,
		opts:      params.Options,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// NewDashboardCache builds the in-process snapshot cache and reports its
// outcomes to m.
func NewDashboardCache(ttl time.Duration, maxEntries int, now func() time.Time, m *metrics.LedgerMetrics) (*cache.Cache[Dashboard], error) {
	return cache.New[Dashboard](cache.Options{
		TTL:        ttl,
		MaxEntries: maxEntries,
		Now:        now,
		OnResult: func(result cache.Result) {
			m.IncCacheResult(string(result))
		},
	})
}

// Dashboard returns the cached snapshot, computing it when expired.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	dashboard, stale, err := s.cache.Get(ctx, dashboardKey, s.loadDashboard)
	if err != nil {
		return nil, err
	}
	dashboard.IsStale = stale
	if stale {
		s.logg.Warn(ctx, "billing.dashboard.stale")
	}
	return &dashboard, nil
}

// RefreshDashboard drops both cache tiers and recomputes the snapshot.
func (s *Service) RefreshDashboard(ctx context.Context) (*Dashboard, error) {
	s.dropShared(ctx)
	dashboard, err := s.computeDashboard(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(dashboardKey, dashboard)
	s.storeShared(ctx, dashboard)
	return &dashboard, nil
}

func (s *Service) loadDashboard(ctx context.Context) (Dashboard, error) {
	if dashboard, ok := s.loadShared(ctx); ok {
		return dashboard, nil
	}
	dashboard, err := s.computeDashboard(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	s.storeShared(ctx, dashboard)
	return dashboard, nil
}

func (s *Service) computeDashboard(ctx context.Context) (Dashboard, error) {
	var shopDocs, subDocs, planDocs []docstore.Document
	group, groupCtx := errgroup.WithContext(ctx)
	for _, load := range []struct {
		collection string
		dest       *[]docstore.Document
	}{
		{CollectionShops, &shopDocs},
		{CollectionSubscriptions, &subDocs},
		{CollectionPlans, &planDocs},
	} {
		group.Go(func() error {
			docs, err := s.documents.List(groupCtx, load.collection)
			if err != nil {
				return pkgerrors.FromStore(err, "load "+load.collection)
			}
			*load.dest = docs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Dashboard{}, err
	}

	shops, skippedShops := decodeAll(shopDocs, DecodeShop, s.now)
	subs, skippedSubs := decodeAll(subDocs, DecodeSubscription, s.now)
	plans, skippedPlans := decodeAll(planDocs, DecodePlan, s.now)
	// newest first so the current subscription wins per shop
	sortNewestFirst(subs)

	dashboard := Dashboard{
		Snapshot:       ComputeAnalytics(shops, subs, plans, s.now(), s.opts),
		SkippedRecords: skippedShops + skippedSubs + skippedPlans,
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"shops":   len(shops),
		"subs":    len(subs),
		"plans":   len(plans),
		"skipped": dashboard.SkippedRecords,
		"mrr":     money.Format(dashboard.Snapshot.MRR),
	})
	s.logg.Info(logCtx, "billing.dashboard.computed")
	return dashboard, nil
}

// invalidateDashboard forgets the snapshot in both tiers. Plan edits change
// MRR, so the next read must recompute.
func (s *Service) invalidateDashboard(ctx context.Context) {
	s.cache.Invalidate(dashboardKey)
	s.dropShared(ctx)
}

func (s *Service) dropShared(ctx context.Context) {
	if s.shared == nil {
		return
	}
	if err := s.shared.Del(ctx, s.shared.CacheKey(dashboardKey)); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "billing.dashboard.shared_del_failed")
	}
}

func (s *Service) loadShared(ctx context.Context) (Dashboard, bool) {
	if s.shared == nil {
		return Dashboard{}, false
	}
	raw, err := s.shared.Get(ctx, s.shared.CacheKey(dashboardKey))
	if err != nil {
		if !errors.Is(err, redis.ErrNil) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "billing.dashboard.shared_get_failed")
		}
		return Dashboard{}, false
	}
	var dashboard Dashboard
	if err := json.Unmarshal([]byte(raw), &dashboard); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "billing.dashboard.shared_decode_failed")
		return Dashboard{}, false
	}
	return dashboard, true
}

func (s *Service) storeShared(ctx context.Context, dashboard Dashboard) {
	if s.shared == nil || s.sharedTTL <= 0 {
		return
	}
	dashboard.IsStale = false
	payload, err := json.Marshal(dashboard)
	if err != nil {
		s.logg.Error(ctx, "billing.dashboard.encode_failed", err)
		return
	}
	if err := s.shared.Set(ctx, s.shared.CacheKey(dashboardKey), payload, s.sharedTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "billing.dashboard.shared_set_failed")
	}
}

func (s *Service) CreatePlan(ctx context.Context, input CreatePlanInput) (*models.BillingPlan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan type")
	}
	if !input.BillingCycle.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing cycle")
	}
	if input.Price.IsNegative() || !money.WithinScale(input.Price) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be a non-negative amount in cents")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	plan := &models.BillingPlan{
		Name:         name,
		Type:         input.Type,
		Price:        input.Price,
		Currency:     currency,
		BillingCycle: input.BillingCycle,
		Features:     pq.StringArray(normalize.NormalizeFeatures(input.Features)),
		Limits:       input.Limits,
		IsActive:     true,
	}
	if err := s.repo.CreateBillingPlan(ctx, plan); err != nil {
		return nil, pkgerrors.FromStore(err, "create billing plan")
	}
	s.invalidateDashboard(ctx)
	return plan, nil
}

func (s *Service) UpdatePlan(ctx context.Context, planID uuid.UUID, input UpdatePlanInput) (*models.BillingPlan, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name required")
		}
		plan.Name = name
	}
	if input.Price != nil {
		if input.Price.IsNegative() || !money.WithinScale(*input.Price) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be a non-negative amount in cents")
		}
		plan.Price = *input.Price
	}
	if input.Features != nil {
		plan.Features = pq.StringArray(normalize.NormalizeFeatures(input.Features))
	}
	if input.Limits != nil {
		plan.Limits = *input.Limits
	}
	if input.IsActive != nil {
		plan.IsActive = *input.IsActive
	}
	if err := s.repo.UpdateBillingPlan(ctx, plan); err != nil {
		return nil, pkgerrors.FromStore(err, "update billing plan")
	}
	s.invalidateDashboard(ctx)
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, planID uuid.UUID) (*models.BillingPlan, error) {
	if planID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	plan, err := s.repo.FindBillingPlanByID(ctx, planID)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "load billing plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("billing plan %s not found", planID))
	}
	return plan, nil
}

func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]models.BillingPlan, error) {
	query := ListBillingPlansQuery{}
	if activeOnly {
		active := true
		query.IsActive = &active
	}
	plans, err := s.repo.ListBillingPlans(ctx, query)
	if err != nil {
		return nil, pkgerrors.FromStore(err, "list billing plans")
	}
	return plans, nil
}
