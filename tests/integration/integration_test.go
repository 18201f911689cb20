//go:build integration

// Package integration_test runs API-level tests against the full stack:
// real router, real services, real redis adapters backed by miniredis.
// Run with: go test -tags=integration ./tests/integration/...
package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"

	batonhttp "github.com/relaykit/baton/internal/adapter/http"
	"github.com/relaykit/baton/internal/adapter/rediskv"
	"github.com/relaykit/baton/internal/adapter/redispub"
	"github.com/relaykit/baton/internal/config"
	"github.com/relaykit/baton/internal/events"
	"github.com/relaykit/baton/internal/limit"
	"github.com/relaykit/baton/internal/middleware"
	"github.com/relaykit/baton/internal/service"
	"github.com/relaykit/baton/internal/store"
)

var (
	testServer *httptest.Server
	testStore  *store.Store
	testRedis  *miniredis.Miniredis
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "miniredis: %v\n", err)
		os.Exit(1)
	}
	testRedis = mr

	cfg := config.Defaults()
	cfg.Store.Backend = "redis"
	cfg.Store.RedisURL = "redis://" + mr.Addr()

	remote, err := rediskv.Connect(ctx, cfg.Store.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis connect: %v\n", err)
		os.Exit(1)
	}
	bus, err := redispub.Connect(ctx, cfg.Store.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis pubsub connect: %v\n", err)
		os.Exit(1)
	}

	st := store.New(store.Options{
		Remote:        remote,
		Bus:           bus,
		RemoteTimeout: cfg.Store.RemoteTimeout,
	})
	st.Connect(ctx)
	testStore = st

	notifier := events.NewNotifier()
	messageSvc := service.NewMessageService(st, notifier, cfg.Store.MessageTTL)
	handoffSvc := service.NewHandoffService(st, notifier, limit.NewPool(cfg.Handoff.MaxConcurrentValidations), &cfg.Handoff)
	statusSvc := service.NewStatusService(messageSvc, handoffSvc, st)

	handlers := &batonhttp.Handlers{
		Messages: messageSvc,
		Handoffs: handoffSvc,
		Status:   statusSvc,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Idempotency(st, cfg.Server.IdempotencyTTL))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","backend":%q,"store_connected":%v}`,
			cfg.Store.Backend, st.Connected())
	})
	batonhttp.MountRoutes(r, handlers)

	testServer = httptest.NewServer(r)

	code := m.Run()

	testServer.Close()
	handoffSvc.Close()
	_ = st.Close()
	mr.Close()
	os.Exit(code)
}

// postJSON posts body to path and decodes the response into out when the
// caller passes one. Returns the status code.
func postJSON(t *testing.T, path string, body, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

// getJSON fetches path and decodes the response into out when the caller
// passes one. Returns the status code.
func getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(testServer.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s: %v", path, err)
		}
	}
	return resp.StatusCode
}
