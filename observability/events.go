package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"utilitychain/core/events"
)

type eventMetrics struct {
	published *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking published module events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = newEventMetrics(prometheus.DefaultRegisterer)
	})
	return eventRegistry
}

func newEventMetrics(reg prometheus.Registerer) *eventMetrics {
	m := &eventMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "utility",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Count of published module events segmented by type.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.published)
	}
	return m
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.published.WithLabelValues(normalized).Inc()
}

// EventCounter is an events.Emitter that counts every event it receives.
type EventCounter struct {
	metrics *eventMetrics
}

// NewEventCounter returns an emitter backed by the default event metrics.
func NewEventCounter() *EventCounter {
	return &EventCounter{metrics: Events()}
}

// Emit implements events.Emitter.
func (c *EventCounter) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	c.metrics.RecordEvent(evt.EventType())
}
