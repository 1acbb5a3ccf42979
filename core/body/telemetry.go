package body

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dmitrymomot/relay/core/body"

type telemetry struct {
	tracer   trace.Tracer
	sessions metric.Int64Counter
	retired  metric.Int64Counter
	absorbed metric.Int64Counter
	written  metric.Int64Counter
}

// newTelemetry falls back to the global providers, which are no-ops unless the
// application installs an SDK.
func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	return &telemetry{
		tracer: tp.Tracer(instrumentationName),
		sessions: counter(meter, "body.sessions",
			"Forwarding sessions by terminal state"),
		retired: counter(meter, "body.retired",
			"Body sources retired"),
		absorbed: counter(meter, "body.absorbed_errors",
			"Failures of superseded sources absorbed after retirement"),
		written: counter(meter, "body.bytes_written",
			"Bytes accepted by sinks"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (t *telemetry) startSession(ctx context.Context, id string, gen uint64, kind Kind) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "body.forward",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("body.session_id", id),
			attribute.Int64("body.generation", int64(gen)),
			attribute.String("body.kind", kind.String()),
		),
	)
}

func (t *telemetry) endSession(ctx context.Context, span trace.Span, state State, written int64, err error) {
	span.SetAttributes(
		attribute.String("body.state", state.String()),
		attribute.Int64("body.bytes_written", written),
	)
	if state == StateErrored && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	t.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state.String())))
}

func (t *telemetry) wrote(ctx context.Context, n int) {
	t.written.Add(ctx, int64(n))
}

func (t *telemetry) retire(kind Kind) {
	t.retired.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (t *telemetry) absorb() {
	t.absorbed.Add(context.Background(), 1)
}
