package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the lead intake pipeline.
type LeadMetrics struct {
	submissionsTotal *prometheus.CounterVec
	persistTotal     *prometheus.CounterVec
	pipelineLatency  *prometheus.HistogramVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roofing",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Lead submissions by pipeline disposition",
		}, []string{"disposition"}),
		persistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roofing",
			Subsystem: "leads",
			Name:      "persist_attempts_total",
			Help:      "Persistence attempts by channel and result",
		}, []string{"channel", "result"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roofing",
			Subsystem: "leads",
			Name:      "pipeline_latency_seconds",
			Help:      "Latency of lead submission handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"disposition"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.persistTotal, m.pipelineLatency)
	return m
}

func (m *LeadMetrics) ObserveSubmission(disposition string, seconds float64) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(disposition).Inc()
	m.pipelineLatency.WithLabelValues(disposition).Observe(seconds)
}

// ObservePersist records one attempt on a persistence channel ("primary" or
// "webhook").
func (m *LeadMetrics) ObservePersist(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.persistTotal.WithLabelValues(channel, result).Inc()
}
