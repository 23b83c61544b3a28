package metrics

import "github.com/prometheus/client_golang/prometheus"

// DialogueMetrics exposes counters/histograms for conversation turns and
// calls to the backing scheduling service.
type DialogueMetrics struct {
	turnsTotal    *prometheus.CounterVec
	externalTotal *prometheus.CounterVec
	turnLatency   *prometheus.HistogramVec
}

func NewDialogueMetrics(reg prometheus.Registerer) *DialogueMetrics {
	m := &DialogueMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medassist",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Total conversation turns processed",
		}, []string{"state", "action"}),
		externalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medassist",
			Subsystem: "dialogue",
			Name:      "external_calls_total",
			Help:      "Total calls to the backing scheduling service",
		}, []string{"operation", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medassist",
			Subsystem: "dialogue",
			Name:      "turn_latency_seconds",
			Help:      "Latency of conversation turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.externalTotal, m.turnLatency)
	return m
}

func (m *DialogueMetrics) ObserveTurn(state, action string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state, action).Inc()
}

func (m *DialogueMetrics) ObserveExternalCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.externalTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *DialogueMetrics) ObserveTurnLatency(state string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(state).Observe(seconds)
}
