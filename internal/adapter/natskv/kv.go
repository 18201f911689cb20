// Package natskv implements the key-value port using NATS JetStream KV.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Store wraps a NATS JetStream KeyValue bucket as a shared key-value store.
type Store struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// Connect establishes a connection to NATS and ensures the KV bucket exists.
// Retention is configured at bucket level, so per-key TTLs are ignored.
func Connect(ctx context.Context, url, bucket string, ttl time.Duration) (*Store, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream kv create: %w", err)
	}

	slog.Info("nats kv connected", "url", url, "bucket", bucket)
	return &Store{nc: nc, kv: kv}, nil
}

// encodeKey maps store keys onto the JetStream KV key charset, which does
// not allow colons.
func encodeKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}

// Get retrieves a value. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores a value. TTL is managed at bucket level.
func (s *Store) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := s.kv.Put(ctx, encodeKey(key), value)
	return err
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Ping verifies the connection is alive.
func (s *Store) Ping(_ context.Context) error {
	if !s.nc.IsConnected() {
		return errors.New("nats: not connected")
	}
	return nil
}

// Close shuts down the NATS connection.
func (s *Store) Close() error {
	s.nc.Close()
	return nil
}
