// Package redispub implements the pub/sub port using Redis channels.
package redispub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaykit/baton/internal/port/pubsub"
)

// Bus wraps a Redis client as a cross-process notification bus.
type Bus struct {
	client *redis.Client
}

// Connect parses the URL, opens a client and verifies the connection.
func Connect(ctx context.Context, url string) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Bus{client: client}, nil
}

// Publish sends data to every subscriber of channel across all processes.
func (b *Bus) Publish(ctx context.Context, channel string, data []byte) error {
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe registers a handler for notifications on channel. The returned
// cancel function stops delivery and releases the subscription.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler pubsub.Handler) (func(), error) {
	sub := b.client.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed before returning so callers
	// cannot publish into a window where nobody is listening yet.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	go func() {
		for msg := range sub.Channel() {
			if err := handler(context.Background(), msg.Channel, []byte(msg.Payload)); err != nil {
				slog.Error("notification handler failed", "channel", msg.Channel, "error", err)
			}
		}
	}()

	return func() { _ = sub.Close() }, nil
}

// IsConnected reports whether Redis currently answers pings.
func (b *Bus) IsConnected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return b.client.Ping(ctx).Err() == nil
}

// Close shuts down the Redis connection.
func (b *Bus) Close() error {
	return b.client.Close()
}
