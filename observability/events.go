package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	transfers *prometheus.CounterVec
	emitted   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed protocol events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "prnt",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of token transfers segmented by token.",
			}, []string{"token"}),
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "prnt",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.transfers, eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordTransfer increments the transfer counter for the supplied token.
func (m *eventMetrics) RecordTransfer(token string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(labelToken(token)).Inc()
}

// RecordEvent counts a committed event by type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.emitted.WithLabelValues(eventType).Inc()
}

func labelToken(token string) string {
	normalized := strings.TrimSpace(strings.ToUpper(token))
	if normalized == "" {
		return "UNKNOWN"
	}
	return normalized
}
