// Package ristretto implements the cache port using dgraph-io/ristretto as
// the in-process read cache for remote-store hits.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const defaultMaxBytes = 16 << 20

// Cache wraps a ristretto cache. Writes are buffered and may be dropped
// under pressure, which is acceptable for a read cache: a dropped entry
// only costs a repeat remote lookup.
type Cache struct {
	inner *ristretto.Cache[string, []byte]
}

// New creates a ristretto-backed cache holding at most maxBytes of cached
// values. Admission counters are sized for entries of roughly 100 bytes.
func New(maxBytes int64) (*Cache, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	counters := maxBytes / 10
	if counters < 1024 {
		counters = 1024
	}

	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Get returns the cached value for key, if the entry is live.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.inner.Get(key)
	if !ok {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value under key, costed by its size. The write is buffered
// and becomes visible shortly after, or never if admission rejects it.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.inner.SetWithTTL(key, value, int64(len(key)+len(value)), ttl)
	return nil
}

// Delete removes key from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.inner.Del(key)
	return nil
}

// Stats reports cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.inner.Metrics.Hits(), c.inner.Metrics.Misses()
}

// Wait blocks until buffered writes have been applied.
func (c *Cache) Wait() {
	c.inner.Wait()
}

// Close releases the cache and its background goroutines.
func (c *Cache) Close() {
	c.inner.Close()
}
