package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyTraceparent = "traceparent"
	keyTracestate  = "tracestate"
)

// TraceContextStrings serialises the span context in ctx so it can be stored
// next to an outbox row and restored by the publisher.
func TraceContextStrings(ctx context.Context) (traceparent, tracestate string) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier[keyTraceparent], carrier[keyTracestate]
}

// ContextWithTraceContext is the inverse of TraceContextStrings. ctx is
// returned unchanged when nothing was stored.
func ContextWithTraceContext(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		keyTraceparent: traceparent,
		keyTracestate:  tracestate,
	})
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer("github.com/lexconnect/lexconnect/" + name)
}
