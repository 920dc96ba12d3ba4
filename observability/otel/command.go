package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "utilitychain/cmd/utilityctl"

// CommandTelemetry wraps operator commands in a span and records their count
// and latency on the configured meter.
type CommandTelemetry struct {
	tracer   trace.Tracer
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewCommandTelemetry builds instruments from the given providers. Nil
// providers fall back to the global ones installed by Init.
func NewCommandTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*CommandTelemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	count, err := meter.Int64Counter("utilityctl.commands",
		metric.WithDescription("Operator commands executed, by command and outcome."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("utilityctl.command.duration",
		metric.WithDescription("Operator command latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &CommandTelemetry{tracer: tp.Tracer(instrumentationName), count: count, duration: duration}, nil
}

// Run executes fn inside a span named after the command. outcome maps the
// returned error to the low-cardinality label recorded on the counter.
func (c *CommandTelemetry) Run(ctx context.Context, command, requestID string, outcome func(error) string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "utilityctl."+command, trace.WithAttributes(
		attribute.String("command", command),
		attribute.String("request_id", requestID),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	label := "ok"
	if outcome != nil {
		label = outcome(err)
	} else if err != nil {
		label = "error"
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, label)
	}
	attrs := metric.WithAttributes(attribute.String("command", command), attribute.String("outcome", label))
	c.count.Add(ctx, 1, attrs)
	c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	return err
}
