package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.Observe("debt-backfill", 250*time.Millisecond, nil)
	m.Observe("debt-backfill", time.Second, errors.New("store down"))
	m.Observe("", time.Millisecond, nil)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("debt-backfill", JobResultSuccess)); got != 1 {
		t.Fatalf("expected 1 success, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("debt-backfill", JobResultFailure)); got != 1 {
		t.Fatalf("expected 1 failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("unknown", JobResultSuccess)); got != 1 {
		t.Fatalf("empty job name should normalize to unknown, got %f", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("debt-backfill")); got <= 0 {
		t.Fatalf("expected last success timestamp, got %f", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	sum, count := histogram(families, "cron_job_duration_seconds", "debt-backfill")
	if count != 2 || sum < 1.25 {
		t.Fatalf("unexpected histogram count=%d sum=%f", count, sum)
	}
}

func TestJobMetricsNilSafe(t *testing.T) {
	var m *JobMetrics
	m.Observe("a", time.Second, nil)
	NewJobMetrics(nil).Observe("a", time.Second, errors.New("x"))
}

func histogram(families []*dto.MetricFamily, name, job string) (float64, uint64) {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					h := metric.GetHistogram()
					return h.GetSampleSum(), h.GetSampleCount()
				}
			}
		}
	}
	return 0, 0
}
