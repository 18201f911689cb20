package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/relaykit/baton/internal/domain/event"
	"github.com/relaykit/baton/internal/events"
)

// BroadcastEvent projects a lifecycle event onto the wire envelope and
// broadcasts it to every connected client.
func (h *Hub) BroadcastEvent(ctx context.Context, evt event.Event) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", string(evt.Type), "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    string(evt.Type),
		Payload: payload,
		TS:      evt.At,
	})
}

// Bridge attaches the hub to the notifier so every lifecycle event is
// re-broadcast to connected clients. The returned function detaches the
// subscriptions again.
func (h *Hub) Bridge(notifier *events.Notifier) func() {
	types := []event.Type{
		event.TypeMessageSent,
		event.TypeHandoffInitiated,
		event.TypeHandoffCompleted,
		event.TypeHandoffTimeout,
	}

	ids := make(map[event.Type]int64, len(types))
	for _, t := range types {
		ids[t] = notifier.On(t, func(evt event.Event) {
			h.BroadcastEvent(context.Background(), evt)
		})
	}

	return func() {
		for t, id := range ids {
			notifier.Off(t, id)
		}
	}
}
