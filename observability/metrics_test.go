package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"utilitychain/core/types"
	"utilitychain/native/utility"
)

var _ utility.Metrics = (*UtilityMetrics)(nil)

func TestUtilityMetricsObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewUtilityMetrics(reg)

	m.ObserveOperation("claim_reward", "ok")
	m.ObserveOperation("claim_reward", "AlreadyClaimed")
	m.ObserveOperation("claim_reward", "AlreadyClaimed")
	m.ObserveOperation("", "")

	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("claim_reward", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("claim_reward", "AlreadyClaimed")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("AlreadyClaimed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("unknown", "unknown")))
	require.Equal(t, 3, testutil.CollectAndCount(m.operations))
}

func TestUtilityMetricsRecordRewardIssued(t *testing.T) {
	m := NewUtilityMetrics(prometheus.NewRegistry())
	m.RecordRewardIssued("mint", 100)
	m.RecordRewardIssued("MINT", 50)
	m.RecordRewardIssued("external", 7)

	require.Equal(t, 150.0, testutil.ToFloat64(m.rewards.WithLabelValues("mint")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.claims.WithLabelValues("mint")))
	require.Equal(t, 7.0, testutil.ToFloat64(m.rewards.WithLabelValues("external")))
}

func TestNilUtilityMetricsIsSafe(t *testing.T) {
	var m *UtilityMetrics
	require.NotPanics(t, func() {
		m.ObserveOperation("create_utility", "ok")
		m.RecordRewardIssued("mint", 1)
	})
}

func TestEventCounterCountsByType(t *testing.T) {
	counter := &EventCounter{metrics: newEventMetrics(prometheus.NewRegistry())}
	counter.Emit(utility.WrapEvent(&types.Event{Type: utility.EventTypeRewardClaimed}))
	counter.Emit(utility.WrapEvent(&types.Event{Type: utility.EventTypeRewardClaimed}))
	counter.Emit(utility.WrapEvent(nil))
	counter.Emit(nil)

	require.Equal(t, 2.0, testutil.ToFloat64(counter.metrics.published.WithLabelValues(utility.EventTypeRewardClaimed)))
	require.Equal(t, 1.0, testutil.ToFloat64(counter.metrics.published.WithLabelValues("unknown")))
}
