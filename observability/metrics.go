package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// UtilityMetrics wraps the collectors tracking utility module activity.
type UtilityMetrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	rewards    *prometheus.CounterVec
	claims     *prometheus.CounterVec
}

var (
	utilityMetricsOnce sync.Once
	utilityRegistry    *UtilityMetrics
)

// Utility returns the lazily-initialised utility metrics registered on the
// default Prometheus registry.
func Utility() *UtilityMetrics {
	utilityMetricsOnce.Do(func() {
		utilityRegistry = NewUtilityMetrics(prometheus.DefaultRegisterer)
	})
	return utilityRegistry
}

// NewUtilityMetrics builds the utility collectors and registers them on reg.
// A nil reg leaves the collectors unregistered.
func NewUtilityMetrics(reg prometheus.Registerer) *UtilityMetrics {
	m := &UtilityMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "utility",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Count of utility operations segmented by operation and outcome.",
		}, []string{"operation", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "utility",
			Subsystem: "engine",
			Name:      "rejections_total",
			Help:      "Count of rejected utility operations segmented by error kind.",
		}, []string{"reason"}),
		rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "utility",
			Subsystem: "rewards",
			Name:      "issued_amount_total",
			Help:      "Total reward amount issued segmented by receipt kind.",
		}, []string{"receipt"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "utility",
			Subsystem: "rewards",
			Name:      "claims_total",
			Help:      "Count of successful reward claims segmented by receipt kind.",
		}, []string{"receipt"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.rejections, m.rewards, m.claims)
	}
	return m
}

// ObserveOperation records the outcome of a committed or rejected operation.
// Outcome "ok" counts as success; anything else is also tallied as a rejection.
func (m *UtilityMetrics) ObserveOperation(op, outcome string) {
	if m == nil {
		return
	}
	op = normalizeLabel(op, "unknown")
	outcome = normalizeLabel(outcome, "unknown")
	m.operations.WithLabelValues(op, outcome).Inc()
	if outcome != "ok" {
		m.rejections.WithLabelValues(outcome).Inc()
	}
}

// RecordRewardIssued records one issued reward of amount.
func (m *UtilityMetrics) RecordRewardIssued(receipt string, amount uint64) {
	if m == nil {
		return
	}
	receipt = normalizeLabel(strings.ToLower(receipt), "unknown")
	m.claims.WithLabelValues(receipt).Inc()
	m.rewards.WithLabelValues(receipt).Add(float64(amount))
}

func normalizeLabel(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
