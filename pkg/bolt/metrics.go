package bolt

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nornicgraph/boltd/pkg/bolt"

// telemetry bundles the tracer, meter and instruments a Server shares
// across every Session. Config's providers default to the otel global
// providers, which are harmless no-ops until an application installs
// real ones, so this never needs a nil check at the call site.
type telemetry struct {
	tracer trace.Tracer
	meter  metric.Meter

	sessionsActive  metric.Int64UpDownCounter
	sessionsFailed  metric.Int64Counter
	messagesTotal   metric.Int64Counter
	messageDuration metric.Float64Histogram
}

func newTelemetry(cfg Config) *telemetry {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	t := &telemetry{
		tracer: tp.Tracer(instrumentationName),
		meter:  mp.Meter(instrumentationName),
	}
	t.sessionsActive, _ = t.meter.Int64UpDownCounter("boltd.sessions.active",
		metric.WithDescription("Number of currently open Bolt sessions"))
	t.sessionsFailed, _ = t.meter.Int64Counter("boltd.sessions.failed",
		metric.WithDescription("Number of sessions that entered the Failed state"))
	t.messagesTotal, _ = t.meter.Int64Counter("boltd.messages.total",
		metric.WithDescription("Number of Bolt messages processed, by tag"))
	t.messageDuration, _ = t.meter.Float64Histogram("boltd.message.duration_ms",
		metric.WithDescription("Time spent handling one Bolt message"),
		metric.WithUnit("ms"))
	return t
}

func (t *telemetry) connectionSpan(ctx context.Context, remoteAddr string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "bolt.connection", trace.WithAttributes(
		attribute.String("net.peer.name", remoteAddr),
	))
}

func (t *telemetry) messageSpan(ctx context.Context, tag string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "bolt.message."+tag, trace.WithAttributes(
		attribute.String("bolt.message_tag", tag),
	))
}

func (t *telemetry) recordMessage(ctx context.Context, tag string, durationMs float64) {
	attrs := metric.WithAttributes(attribute.String("tag", tag))
	t.messagesTotal.Add(ctx, 1, attrs)
	t.messageDuration.Record(ctx, durationMs, attrs)
}
