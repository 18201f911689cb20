package otel

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/relaykit/baton/internal/domain/event"
	"github.com/relaykit/baton/internal/events"
)

// Bridge attaches the metric instruments to the notifier so each
// lifecycle event increments its counter. The returned function detaches
// the subscriptions again.
func (m *Metrics) Bridge(notifier *events.Notifier) func() {
	counters := map[event.Type]metric.Int64Counter{
		event.TypeMessageSent:      m.MessagesSent,
		event.TypeHandoffInitiated: m.HandoffsInitiated,
		event.TypeHandoffCompleted: m.HandoffsCompleted,
		event.TypeHandoffTimeout:   m.HandoffTimeouts,
	}

	ids := make(map[event.Type]int64, len(counters))
	for t, counter := range counters {
		ids[t] = notifier.On(t, func(event.Event) {
			counter.Add(context.Background(), 1)
		})
	}

	return func() {
		for t, id := range ids {
			notifier.Off(t, id)
		}
	}
}
