// Package natspub implements the pub/sub port using core NATS subjects.
// Notifications are transient hints, so core NATS delivery (at most once,
// no replay) is the right fit; durable state lives in the key-value store.
package natspub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/relaykit/baton/internal/port/pubsub"
)

// Bus wraps a NATS connection as a cross-process notification bus.
type Bus struct {
	nc *nats.Conn
}

// Connect establishes a connection to NATS.
func Connect(url string) (*Bus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	slog.Info("nats pubsub connected", "url", url)
	return &Bus{nc: nc}, nil
}

// encodeSubject maps channel names onto NATS subject tokens. Colons are
// not valid inside subject tokens, dots are the token separator.
func encodeSubject(channel string) string {
	return strings.ReplaceAll(channel, ":", ".")
}

// Publish sends data to every subscriber of channel across all processes.
func (b *Bus) Publish(_ context.Context, channel string, data []byte) error {
	if err := b.nc.Publish(encodeSubject(channel), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe registers a handler for notifications on channel. The handler
// is invoked with the channel name as subscribed, not the NATS subject.
func (b *Bus) Subscribe(_ context.Context, channel string, handler pubsub.Handler) (func(), error) {
	sub, err := b.nc.Subscribe(encodeSubject(channel), func(msg *nats.Msg) {
		if err := handler(context.Background(), channel, msg.Data); err != nil {
			slog.Error("notification handler failed", "channel", channel, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("nats unsubscribe failed", "channel", channel, "error", err)
		}
	}, nil
}

// IsConnected reports whether the NATS connection is alive.
func (b *Bus) IsConnected() bool {
	return b.nc.IsConnected()
}

// Close shuts down the NATS connection.
func (b *Bus) Close() error {
	b.nc.Close()
	return nil
}
