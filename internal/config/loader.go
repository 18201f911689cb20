package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "baton.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// BATON_CONFIG overrides the YAML path; a missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv("BATON_CONFIG"); v != "" {
		path = v
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML overlays the YAML file onto cfg. A missing file is fine; an
// unknown key is not, since a typo would otherwise silently fall back to
// the default.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// overlay sets *dst from the named variable when it is present and parses
// cleanly. Malformed values are ignored so a typo in the environment
// cannot take the coordinator down.
func overlay[T any](dst *T, key string, parse func(string) (T, error)) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if parsed, err := parse(v); err == nil {
		*dst = parsed
	}
}

func asString(v string) (string, error)        { return v, nil }
func asInt(v string) (int, error)              { return strconv.Atoi(v) }
func asInt64(v string) (int64, error)          { return strconv.ParseInt(v, 10, 64) }
func asFloat(v string) (float64, error)        { return strconv.ParseFloat(v, 64) }
func asBool(v string) (bool, error)            { return strconv.ParseBool(v) }
func asDuration(v string) (time.Duration, error) { return time.ParseDuration(v) }

// loadEnv overlays environment variables onto cfg.
func loadEnv(cfg *Config) {
	overlay(&cfg.Server.Port, "BATON_PORT", asString)
	overlay(&cfg.Server.CORSOrigin, "BATON_CORS_ORIGIN", asString)
	overlay(&cfg.Server.RateLimitRPS, "BATON_RATE_LIMIT_RPS", asFloat)
	overlay(&cfg.Server.RateLimitBurst, "BATON_RATE_LIMIT_BURST", asInt)
	overlay(&cfg.Server.IdempotencyTTL, "BATON_IDEMPOTENCY_TTL", asDuration)

	overlay(&cfg.Store.Backend, "BATON_STORE_BACKEND", asString)
	overlay(&cfg.Store.RedisURL, "REDIS_URL", asString)
	overlay(&cfg.Store.NATSURL, "NATS_URL", asString)
	overlay(&cfg.Store.NATSBucket, "BATON_NATS_BUCKET", asString)
	overlay(&cfg.Store.RemoteTimeout, "BATON_STORE_REMOTE_TIMEOUT", asDuration)
	overlay(&cfg.Store.MessageTTL, "BATON_MESSAGE_TTL", asDuration)
	overlay(&cfg.Store.CacheSizeMB, "BATON_CACHE_SIZE_MB", asInt64)
	overlay(&cfg.Store.CacheTTL, "BATON_CACHE_TTL", asDuration)

	overlay(&cfg.Handoff.DefaultTimeoutMs, "BATON_HANDOFF_TIMEOUT_MS", asInt64)
	overlay(&cfg.Handoff.PendingTTL, "BATON_HANDOFF_PENDING_TTL", asDuration)
	overlay(&cfg.Handoff.TerminalTTL, "BATON_HANDOFF_TERMINAL_TTL", asDuration)
	overlay(&cfg.Handoff.MaxConcurrentValidations, "BATON_HANDOFF_MAX_VALIDATIONS", asInt)

	overlay(&cfg.MCP.Addr, "BATON_MCP_ADDR", asString)
	overlay(&cfg.MCP.APIKey, "BATON_MCP_API_KEY", asString)

	overlay(&cfg.Logging.Level, "BATON_LOG_LEVEL", asString)
	overlay(&cfg.Logging.Service, "BATON_LOG_SERVICE", asString)
	overlay(&cfg.Logging.Async, "BATON_LOG_ASYNC", asBool)

	overlay(&cfg.Breaker.MaxFailures, "BATON_BREAKER_MAX_FAILURES", asInt)
	overlay(&cfg.Breaker.Timeout, "BATON_BREAKER_TIMEOUT", asDuration)

	overlay(&cfg.Telemetry.Enabled, "BATON_TELEMETRY_ENABLED", asBool)
	overlay(&cfg.Telemetry.OTLPEndpoint, "BATON_OTLP_ENDPOINT", asString)
	overlay(&cfg.Telemetry.SampleRate, "BATON_TELEMETRY_SAMPLE_RATE", asFloat)
}

// validate rejects configs the coordinator cannot run with. The first
// violated rule wins.
func validate(cfg *Config) error {
	rules := []struct {
		bad bool
		msg string
	}{
		{cfg.Server.Port == "", "server.port is required"},
		{cfg.Server.RateLimitRPS < 0, "server.rate_limit_rps must not be negative"},
		{cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst < 1, "server.rate_limit_burst must be >= 1 when rate limiting is enabled"},
		{cfg.Server.IdempotencyTTL <= 0, "server.idempotency_ttl must be positive"},
		{cfg.Store.RemoteTimeout <= 0, "store.remote_timeout must be positive"},
		{cfg.Store.MessageTTL <= 0, "store.message_ttl must be positive"},
		{cfg.Handoff.DefaultTimeoutMs < 1, "handoff.default_timeout_ms must be >= 1"},
		{cfg.Handoff.PendingTTL <= 0 || cfg.Handoff.TerminalTTL <= 0, "handoff TTLs must be positive"},
		{cfg.Handoff.MaxConcurrentValidations < 1, "handoff.max_concurrent_validations must be >= 1"},
		{cfg.Breaker.MaxFailures < 1, "breaker.max_failures must be >= 1"},
	}
	for _, r := range rules {
		if r.bad {
			return errors.New(r.msg)
		}
	}

	switch cfg.Store.Backend {
	case "memory":
	case "redis":
		if cfg.Store.RedisURL == "" {
			return errors.New("store.redis_url is required for the redis backend")
		}
	case "nats":
		if cfg.Store.NATSURL == "" {
			return errors.New("store.nats_url is required for the nats backend")
		}
		if cfg.Store.NATSBucket == "" {
			return errors.New("store.nats_bucket is required for the nats backend")
		}
	default:
		return errors.New("store.backend must be one of memory, redis, nats")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
