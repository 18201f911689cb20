// Package cache defines the port interface for the store's local read cache.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value cache with per-entry expiry. The coordinator uses
// it to keep remote-store hits close to the process so repeated lookups of
// foreign records skip the network. Implementations are free to evict or
// drop entries at any time; a miss never carries an error, it just sends
// the caller back to the backend.
type Cache interface {
	// Get returns the cached value for key. ok reports a hit; a miss is
	// (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for at most ttl. Implementations may
	// discard the write entirely.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key if present. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error
}
