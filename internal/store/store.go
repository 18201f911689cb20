// Package store implements the dual-backend persistence layer.
//
// The local in-process map is always authoritative for records created by
// this process. When a shared backend is configured, writes mirror to it
// best-effort and reads fall back to it on local misses. Remote failures
// degrade the store to local-only behavior; they never surface to callers
// and never block beyond the configured remote bound.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaykit/baton/internal/port/cache"
	"github.com/relaykit/baton/internal/port/kv"
	"github.com/relaykit/baton/internal/port/pubsub"
	"github.com/relaykit/baton/internal/resilience"
)

const (
	defaultRemoteTimeout = 2 * time.Second
	defaultCacheTTL      = 30 * time.Second
)

// RemoteObserver receives the outcome of every call against the shared
// backend. Implementations must be cheap; they run on the calling path.
type RemoteObserver interface {
	ObserveRemoteCall(ctx context.Context, op string, elapsed time.Duration, err error)
}

// Options configure a Store. Remote, Bus, Cache, Breaker and Observer are
// all optional; zero Options yield a purely local store.
type Options struct {
	// Remote is the shared key-value backend records mirror to.
	Remote kv.Store
	// Bus carries cross-process notifications.
	Bus pubsub.Bus
	// Cache holds remote read hits close to the process.
	Cache cache.Cache
	// Breaker guards remote calls so a dead backend costs one probe per
	// cooldown window instead of one timeout per call.
	Breaker *resilience.Breaker
	// Observer is notified of remote call outcomes.
	Observer RemoteObserver
	// RemoteTimeout bounds each remote call. Defaults to 2s.
	RemoteTimeout time.Duration
	// CacheTTL bounds how long backfilled remote hits stay cached.
	// Defaults to 30s.
	CacheTTL time.Duration
}

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Store is the dual-backend key-value and notification layer.
type Store struct {
	mu    sync.RWMutex
	local map[string]entry

	remote   kv.Store
	bus      pubsub.Bus
	cache    cache.Cache
	breaker  *resilience.Breaker
	observer RemoteObserver
	timeout  time.Duration
	cacheTTL time.Duration

	// ready flips on the first successful remote call and stays set;
	// the breaker tracks health from there.
	ready atomic.Bool

	now func() time.Time
}

// New creates a Store from the given options.
func New(opts Options) *Store {
	timeout := opts.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Store{
		local:    make(map[string]entry),
		remote:   opts.Remote,
		bus:      opts.Bus,
		cache:    opts.Cache,
		breaker:  opts.Breaker,
		observer: opts.Observer,
		timeout:  timeout,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Connect probes the shared backend. A failed probe is logged and leaves
// the store local-only; it is never surfaced to the caller.
func (s *Store) Connect(ctx context.Context) {
	if s.remote == nil {
		slog.Info("store running local-only, no shared backend configured")
		return
	}
	if s.do(ctx, "ping", "", func(rctx context.Context) error {
		return s.remote.Ping(rctx)
	}) {
		slog.Info("shared store connected")
	}
}

// Put writes the record locally and mirrors it to the shared backend
// best-effort. Local state is authoritative for this process, so remote
// failures are absorbed.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.local[key] = e
	s.mu.Unlock()

	if s.cache != nil {
		// Drop any stale backfilled copy so the rewrite wins.
		_ = s.cache.Delete(ctx, key)
	}

	if s.remote != nil {
		s.do(ctx, "set", key, func(rctx context.Context) error {
			return s.remote.Set(rctx, key, value, ttl)
		})
	}
}

// Get returns the record for key. It checks local state first, then the
// read cache, then the shared backend. A remote failure resolves to a
// miss, never an error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.local[key]
	s.mu.RUnlock()
	if ok {
		if e.expiresAt.IsZero() || s.now().Before(e.expiresAt) {
			return e.value, true
		}
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have
		// replaced the entry since we dropped the read lock.
		if cur, still := s.local[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.local, key)
		}
		s.mu.Unlock()
	}

	if s.cache != nil {
		if data, found, err := s.cache.Get(ctx, key); err == nil && found {
			return data, true
		}
	}

	if s.remote == nil {
		return nil, false
	}

	var (
		data  []byte
		found bool
	)
	called := s.do(ctx, "get", key, func(rctx context.Context) error {
		var err error
		data, found, err = s.remote.Get(rctx, key)
		return err
	})
	if !called || !found {
		return nil, false
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, data, s.cacheTTL)
	}
	return data, true
}

// Publish sends a notification best-effort. Payloads that fail schema
// validation are dropped before they reach the wire.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) {
	if err := pubsub.Validate(channel, payload); err != nil {
		slog.Warn("notification payload rejected", "channel", channel, "error", err)
		return
	}
	if s.bus == nil {
		return
	}
	s.do(ctx, "publish", channel, func(rctx context.Context) error {
		return s.bus.Publish(rctx, channel, payload)
	})
}

// Connected reports whether the shared backend is currently usable.
func (s *Store) Connected() bool {
	if s.remote == nil || !s.ready.Load() {
		return false
	}
	if s.breaker != nil && s.breaker.State() == resilience.StateOpen {
		return false
	}
	return true
}

// CountPrefix counts unexpired local records under the given key prefix.
func (s *Store) CountPrefix(prefix string) int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k, e := range s.local {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			continue
		}
		n++
	}
	return n
}

// Close shuts down the shared backend connections.
func (s *Store) Close() error {
	var errs []error
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// do runs fn against the shared backend, bounded by the remote timeout
// and gated by the breaker. It reports whether the call succeeded.
func (s *Store) do(ctx context.Context, op, key string, fn func(context.Context) error) bool {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	call := func() error { return fn(rctx) }

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(call)
	} else {
		err = call()
	}

	if s.observer != nil {
		s.observer.ObserveRemoteCall(ctx, op, s.now().Sub(start), err)
	}

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			slog.Debug("shared store skipped, breaker open", "op", op, "key", key)
		} else {
			slog.Warn("shared store call failed", "op", op, "key", key, "error", err)
		}
		return false
	}
	s.ready.Store(true)
	return true
}
