package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDialogueMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDialogueMetrics(reg)

	m.ObserveTurn("authenticated", "offer_booking")
	m.ObserveTurn("authenticated", "offer_booking")
	m.ObserveExternalCall("find_patient", "ok")
	m.ObserveTurnLatency("start", 0.05)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("authenticated", "offer_booking")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.externalTotal.WithLabelValues("find_patient", "ok")))

	count := testutil.CollectAndCount(m.turnLatency)
	assert.Equal(t, 1, count)
}

func TestDialogueMetricsNilSafe(t *testing.T) {
	var m *DialogueMetrics

	// Must not panic when metrics are disabled.
	m.ObserveTurn("start", "request_name")
	m.ObserveExternalCall("list_doctors", "rejected")
	m.ObserveTurnLatency("start", 0.1)
}
