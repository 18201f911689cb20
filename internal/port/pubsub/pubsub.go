// Package pubsub defines the notification bus port (interface).
package pubsub

import "context"

// Handler processes a notification received from the bus.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, channel string, data []byte) error

// Bus is the port interface for fire-and-forget notification delivery.
// Notifications are hints, not a work queue: there is no acknowledgement
// and a missed notification is recovered by polling.
type Bus interface {
	// Publish sends a notification to the given channel.
	Publish(ctx context.Context, channel string, data []byte) error

	// Subscribe registers a handler for notifications on the given channel.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, channel string, handler Handler) (cancel func(), err error)

	// IsConnected reports whether the bus is currently connected.
	IsConnected() bool

	// Close shuts down the bus connection.
	Close() error
}

// MessageChannel returns the notification channel for messages addressed
// to the given agent.
func MessageChannel(agent string) string {
	return "agent:" + agent + ":messages"
}

// HandoffChannel returns the notification channel for handoffs addressed
// to the given agent.
func HandoffChannel(agent string) string {
	return "agent:" + agent + ":handoffs"
}
