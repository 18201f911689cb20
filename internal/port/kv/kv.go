// Package kv defines the port interface for the shared key/value backend.
package kv

import (
	"context"
	"time"
)

// Store is the port interface for the shared TTL key/value backend.
// Implementations report errors; absorbing them is the caller's policy.
type Store interface {
	// Get retrieves the value stored under key. A missing key is
	// (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given retention. Backends that
	// only support bucket-level retention may ignore ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the value stored under key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Key prefixes for the coordinator's shared-store namespace.
const (
	MessageKeyPrefix = "message:"
	HandoffKeyPrefix = "handoff:"
)

// MessageKey returns the shared-store key for a message id.
func MessageKey(id string) string { return MessageKeyPrefix + id }

// HandoffKey returns the shared-store key for a handoff id.
func HandoffKey(id string) string { return HandoffKeyPrefix + id }
