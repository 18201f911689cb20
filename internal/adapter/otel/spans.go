package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "baton"

// recordRemoteSpan emits a client span for a finished shared-store call.
// The store reports outcomes after the fact, so the span is backdated to
// cover the elapsed window.
func recordRemoteSpan(ctx context.Context, op string, elapsed time.Duration, err error) {
	start := time.Now().Add(-elapsed)
	_, span := otel.Tracer(tracerName).Start(ctx, "store.remote."+op,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.op", op)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(start.Add(elapsed)))
}
