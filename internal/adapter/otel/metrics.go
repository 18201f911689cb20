package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "baton"

// Metrics holds all coordinator metric instruments.
type Metrics struct {
	MessagesSent      metric.Int64Counter
	HandoffsInitiated metric.Int64Counter
	HandoffsCompleted metric.Int64Counter
	HandoffTimeouts   metric.Int64Counter
	RemoteDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	var firstErr error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c
	}

	m := &Metrics{
		MessagesSent:      counter("baton.messages.sent", "Number of messages accepted"),
		HandoffsInitiated: counter("baton.handoffs.initiated", "Number of handoffs initiated"),
		HandoffsCompleted: counter("baton.handoffs.completed", "Number of handoffs completed"),
		HandoffTimeouts:   counter("baton.handoffs.timeouts", "Number of handoffs expired by the timeout watcher"),
	}

	var err error
	m.RemoteDuration, err = meter.Float64Histogram("baton.store.remote.duration",
		metric.WithDescription("Shared-store call duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return m, nil
}

// ObserveRemoteCall records the duration and outcome of a shared-store
// call and mirrors it as a client span. It satisfies the store's
// observer hook.
func (m *Metrics) ObserveRemoteCall(ctx context.Context, op string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RemoteDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0,
		metric.WithAttributes(
			attribute.String("store.op", op),
			attribute.String("store.outcome", outcome),
		),
	)
	recordRemoteSpan(ctx, op, elapsed, err)
}
