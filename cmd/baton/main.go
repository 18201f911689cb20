package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	batonhttp "github.com/relaykit/baton/internal/adapter/http"
	batonmcp "github.com/relaykit/baton/internal/adapter/mcp"
	"github.com/relaykit/baton/internal/adapter/memkv"
	"github.com/relaykit/baton/internal/adapter/mempub"
	"github.com/relaykit/baton/internal/adapter/natskv"
	"github.com/relaykit/baton/internal/adapter/natspub"
	batonotel "github.com/relaykit/baton/internal/adapter/otel"
	"github.com/relaykit/baton/internal/adapter/rediskv"
	"github.com/relaykit/baton/internal/adapter/redispub"
	"github.com/relaykit/baton/internal/adapter/ristretto"
	"github.com/relaykit/baton/internal/adapter/ws"
	"github.com/relaykit/baton/internal/config"
	"github.com/relaykit/baton/internal/events"
	"github.com/relaykit/baton/internal/limit"
	"github.com/relaykit/baton/internal/logger"
	"github.com/relaykit/baton/internal/middleware"
	"github.com/relaykit/baton/internal/resilience"
	"github.com/relaykit/baton/internal/service"
	"github.com/relaykit/baton/internal/store"
)

const version = "0.1.0"

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(bootstrap)

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLogger := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLogger.Close()

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"backend", cfg.Store.Backend,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Telemetry ---

	providers, err := batonotel.Init(cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := batonotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Shared store ---
	// A failed backend connection degrades the store to local-only; it
	// never prevents startup.

	opts := store.Options{
		Observer:      metrics,
		RemoteTimeout: cfg.Store.RemoteTimeout,
		CacheTTL:      cfg.Store.CacheTTL,
	}
	switch cfg.Store.Backend {
	case "memory":
		opts.Remote = memkv.New()
		opts.Bus = mempub.New()
	case "redis":
		if remote, err := rediskv.Connect(ctx, cfg.Store.RedisURL); err != nil {
			slog.Warn("redis unavailable, starting local-only", "error", err)
		} else {
			opts.Remote = remote
		}
		if bus, err := redispub.Connect(ctx, cfg.Store.RedisURL); err != nil {
			slog.Warn("redis pubsub unavailable", "error", err)
		} else {
			opts.Bus = bus
		}
	case "nats":
		if remote, err := natskv.Connect(ctx, cfg.Store.NATSURL, cfg.Store.NATSBucket, cfg.Store.MessageTTL); err != nil {
			slog.Warn("nats unavailable, starting local-only", "error", err)
		} else {
			opts.Remote = remote
		}
		if bus, err := natspub.Connect(cfg.Store.NATSURL); err != nil {
			slog.Warn("nats pubsub unavailable", "error", err)
		} else {
			opts.Bus = bus
		}
	}

	// The breaker and read cache wrap networked backends only.
	var closeCache func()
	if opts.Remote != nil && cfg.Store.Backend != "memory" {
		opts.Breaker = resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		if c, err := ristretto.New(cfg.Store.CacheSizeMB * 1024 * 1024); err != nil {
			slog.Warn("read cache init failed, running without it", "error", err)
		} else {
			opts.Cache = c
			closeCache = func() {
				hits, misses := c.Stats()
				slog.Debug("read cache closed", "hits", hits, "misses", misses)
				c.Close()
			}
		}
	}

	st := store.New(opts)
	st.Connect(ctx)

	// --- Services ---

	notifier := events.NewNotifier()
	messageSvc := service.NewMessageService(st, notifier, cfg.Store.MessageTTL)
	handoffSvc := service.NewHandoffService(st, notifier, limit.NewPool(cfg.Handoff.MaxConcurrentValidations), &cfg.Handoff)
	statusSvc := service.NewStatusService(messageSvc, handoffSvc, st)

	// --- Event fanout ---

	hub := ws.NewHub()
	detachWS := hub.Bridge(notifier)
	detachMetrics := metrics.Bridge(notifier)

	// --- MCP ---

	mcpSrv := batonmcp.NewServer(batonmcp.ServerConfig{
		Addr:    cfg.MCP.Addr,
		Name:    cfg.Logging.Service,
		Version: version,
		APIKey:  cfg.MCP.APIKey,
	}, batonmcp.ServerDeps{
		Messages: messageSvc,
		Handoffs: handoffSvc,
		Status:   statusSvc,
	})
	if err := mcpSrv.Start(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}

	// --- HTTP ---

	handlers := &batonhttp.Handlers{
		Messages: messageSvc,
		Handoffs: handoffSvc,
		Status:   statusSvc,
		Version:  version,
	}

	r := chi.NewRouter()

	// Middleware
	if cfg.Telemetry.Enabled {
		r.Use(batonotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(batonhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(batonhttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(batonhttp.Logger)
	var stopLimiter func()
	if cfg.Server.RateLimitRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		stopLimiter = rl.StartCleanup(time.Minute, 10*time.Minute)
		r.Use(rl.Handler)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Idempotency(st, cfg.Server.IdempotencyTTL))

	r.Get("/health", healthHandler(cfg, st))

	// WebSocket event feed
	r.Get("/ws", hub.HandleWS)

	// API routes
	batonhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr, "backend", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if err := mcpSrv.Stop(shutdownCtx); err != nil {
		slog.Error("mcp shutdown", "error", err)
	}
	handoffSvc.Close()
	detachWS()
	detachMetrics()
	if stopLimiter != nil {
		stopLimiter()
	}
	if err := st.Close(); err != nil {
		slog.Error("store close", "error", err)
	}
	if closeCache != nil {
		closeCache()
	}
	return providers.Shutdown(shutdownCtx)
}

// healthHandler reports process liveness and shared-store connectivity.
func healthHandler(cfg *config.Config, st *store.Store) http.HandlerFunc {
	type healthStatus struct {
		Status         string `json:"status"`
		Backend        string `json:"backend"`
		StoreConnected bool   `json:"store_connected"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:         "ok",
			Backend:        cfg.Store.Backend,
			StoreConnected: st.Connected(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
