package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLeadMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLeadMetrics(reg)
	m.ObserveSubmission("accepted", 0.2)
	m.ObserveSubmission("accepted", 0.1)
	m.ObserveSubmission("bot", 0.01)
	m.ObservePersist("primary", false)
	m.ObservePersist("webhook", true)

	if got := testutil.ToFloat64(m.submissionsTotal.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("expected 2 accepted submissions, got %v", got)
	}
	if got := testutil.ToFloat64(m.persistTotal.WithLabelValues("primary", "failure")); got != 1 {
		t.Fatalf("expected 1 primary failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.persistTotal.WithLabelValues("webhook", "success")); got != 1 {
		t.Fatalf("expected 1 webhook success, got %v", got)
	}
}

func TestLeadMetricsNilSafe(t *testing.T) {
	var m *LeadMetrics
	m.ObserveSubmission("accepted", 0.1)
	m.ObservePersist("primary", true)
}
