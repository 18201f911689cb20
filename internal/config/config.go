// Package config provides hierarchical configuration loading for Baton.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the Baton coordinator.
type Config struct {
	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	Handoff   Handoff   `yaml:"handoff"`
	MCP       MCP       `yaml:"mcp"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration. A zero RateLimitRPS disables
// rate limiting entirely.
type Server struct {
	Port           string        `yaml:"port"`
	CORSOrigin     string        `yaml:"cors_origin"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"` // replay window for Idempotency-Key requests
}

// Store holds shared store configuration. Backend selects the remote
// key-value and pub/sub pairing; "memory" keeps everything in process.
type Store struct {
	Backend       string        `yaml:"backend"` // "memory" | "redis" | "nats"
	RedisURL      string        `yaml:"redis_url"`
	NATSURL       string        `yaml:"nats_url"`
	NATSBucket    string        `yaml:"nats_bucket"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"` // upper bound per remote call
	MessageTTL    time.Duration `yaml:"message_ttl"`
	CacheSizeMB   int64         `yaml:"cache_size_mb"`
	CacheTTL      time.Duration `yaml:"cache_ttl"` // lifetime of backfilled remote reads
}

// Handoff holds handoff coordinator configuration.
type Handoff struct {
	DefaultTimeoutMs         int64         `yaml:"default_timeout_ms"` // applied when a request omits its deadline
	PendingTTL               time.Duration `yaml:"pending_ttl"`
	TerminalTTL              time.Duration `yaml:"terminal_ttl"`
	MaxConcurrentValidations int           `yaml:"max_concurrent_validations"`
}

// MCP holds the tool server configuration. An empty APIKey disables
// bearer authentication.
type MCP struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for remote store calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:           "8080",
			CORSOrigin:     "http://localhost:3000",
			RateLimitRPS:   0,
			RateLimitBurst: 20,
			IdempotencyTTL: time.Hour,
		},
		Store: Store{
			Backend:       "memory",
			RedisURL:      "redis://localhost:6379",
			NATSURL:       "nats://localhost:4222",
			NATSBucket:    "baton",
			RemoteTimeout: 2 * time.Second,
			MessageTTL:    time.Hour,
			CacheSizeMB:   64,
			CacheTTL:      30 * time.Second,
		},
		Handoff: Handoff{
			DefaultTimeoutMs:         300_000,
			PendingTTL:               time.Hour,
			TerminalTTL:              24 * time.Hour,
			MaxConcurrentValidations: 8,
		},
		MCP: MCP{
			Addr: ":8081",
		},
		Logging: Logging{
			Level:   "info",
			Service: "baton",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Telemetry: Telemetry{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}
