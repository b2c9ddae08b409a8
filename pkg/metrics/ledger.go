package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts money-moving events and analytics cache outcomes.
type LedgerMetrics struct {
	payments     *prometheus.CounterVec
	debtsCreated *prometheus.CounterVec
	cacheResults *prometheus.CounterVec
}

// Debt creation sources.
const (
	DebtSourceCompletion = "completion"
	DebtSourceBackfill   = "backfill"
)

// NewLedgerMetrics registers the ledger collectors on reg. A nil registerer
// yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Payments appended to orders, by method.",
	}, []string{"method"})
	debtsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "debts_created_total",
		Help: "Debt records created, by source.",
	}, []string{"source"})
	cacheResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_cache_total",
		Help: "Analytics dashboard cache lookups, by result.",
	}, []string{"result"})
	reg.MustRegister(payments, debtsCreated, cacheResults)
	return &LedgerMetrics{
		payments:     payments,
		debtsCreated: debtsCreated,
		cacheResults: cacheResults,
	}
}

func (m *LedgerMetrics) IncPayment(method string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *LedgerMetrics) IncDebtCreated(source string) {
	if m == nil || m.debtsCreated == nil {
		return
	}
	m.debtsCreated.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *LedgerMetrics) IncCacheResult(result string) {
	if m == nil || m.cacheResults == nil {
		return
	}
	m.cacheResults.WithLabelValues(normalizeLabel(result)).Inc()
}
