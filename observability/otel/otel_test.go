package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" x-api-key = abc ,broken, =skip,tenant=ops,")
	require.Equal(t, map[string]string{"x-api-key": "abc", "tenant": "ops"}, got)
	require.Empty(t, ParseHeaders(""))
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "utilityctl"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestCommandTelemetryRecordsSpanAndCounter(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tel, err := NewCommandTelemetry(tp, mp)
	require.NoError(t, err)

	outcome := func(err error) string {
		if err != nil {
			return "not_authorized"
		}
		return "ok"
	}
	require.NoError(t, tel.Run(context.Background(), "create", "req-1", outcome, func(context.Context) error { return nil }))
	failure := errors.New("denied")
	require.ErrorIs(t, tel.Run(context.Background(), "claim", "req-2", outcome, func(context.Context) error { return failure }), failure)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "utilityctl.create", ended[0].Name())
	require.Equal(t, "utilityctl.claim", ended[1].Name())
	require.Len(t, ended[1].Events(), 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	var counted int64
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "utilityctl.commands" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		for _, dp := range sum.DataPoints {
			counted += dp.Value
		}
	}
	require.Equal(t, int64(2), counted)
}
