// Package mempub implements the pubsub port with in-process fanout.
// It pairs with memkv for single-process deployments: notifications reach
// subscribers in the same process and nobody else, which matches what a
// local-only coordinator can promise anyway.
package mempub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/relaykit/baton/internal/port/pubsub"
)

type subscriber struct {
	id      int64
	handler pubsub.Handler
}

// Bus is an in-process notification bus.
type Bus struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[string][]subscriber
	closed bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Publish delivers data to every subscriber of channel. Each handler runs
// on its own goroutine so a slow subscriber cannot block the publisher.
func (b *Bus) Publish(ctx context.Context, channel string, data []byte) error {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs[channel]))
	copy(subs, b.subs[channel])
	b.mu.RUnlock()

	for _, s := range subs {
		go func(s subscriber) {
			if err := s.handler(ctx, channel, data); err != nil {
				slog.Error("notification handler failed", "channel", channel, "error", err)
			}
		}(s)
	}
	return nil
}

// Subscribe registers a handler for notifications on channel.
func (b *Bus) Subscribe(_ context.Context, channel string, handler pubsub.Handler) (func(), error) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[channel] = append(b.subs[channel], subscriber{id: id, handler: handler})
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i := range subs {
			if subs[i].id == id {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
	return cancel, nil
}

// IsConnected reports whether the bus accepts traffic.
func (b *Bus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// Close drops all subscriptions.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.subs = make(map[string][]subscriber)
	b.closed = true
	b.mu.Unlock()
	return nil
}
