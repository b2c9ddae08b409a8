package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job run outcomes.
const (
	JobResultSuccess = "success"
	JobResultFailure = "failure"
)

// JobMetrics tracks scheduled job runs for the cron worker.
type JobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewJobMetrics registers the job collectors on reg. A nil registerer yields
// a no-op recorder so jobs can run from tests and one-shot invocations.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job executions, by job and result.",
	}, []string{"job", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Wall time of cron job executions.",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
	}, []string{"job"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run, by job.",
	}, []string{"job"})
	reg.MustRegister(runs, duration, lastSuccess)
	return &JobMetrics{runs: runs, duration: duration, lastSuccess: lastSuccess}
}

// Observe records one finished run. A non-nil err counts as a failure.
func (m *JobMetrics) Observe(job string, took time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, JobResultFailure).Inc()
		return
	}
	m.runs.WithLabelValues(job, JobResultSuccess).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
