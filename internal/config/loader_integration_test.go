package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// These tests run the whole load pipeline end to end, including the
// Holder reload cycle that SIGHUP-style operation relies on. Duration
// knobs are exercised through the environment; YAML carries the scalar
// fields.

func rewriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPipelinePrecedence(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9292"
store:
  backend: "redis"
  redis_url: "redis://cache:6379"
logging:
  level: "debug"
handoff:
  default_timeout_ms: 60000
`)
	t.Setenv("BATON_PORT", "7272")
	t.Setenv("BATON_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	// Env wins where both layers set a field.
	if cfg.Server.Port != "7272" {
		t.Errorf("got port %q, want env value 7272", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("got level %q, want env value warn", cfg.Logging.Level)
	}
	// YAML wins where the env is silent.
	if cfg.Store.Backend != "redis" {
		t.Errorf("got backend %q, want YAML value redis", cfg.Store.Backend)
	}
	if cfg.Handoff.DefaultTimeoutMs != 60_000 {
		t.Errorf("got default_timeout_ms %d, want YAML value 60000", cfg.Handoff.DefaultTimeoutMs)
	}
	// Defaults survive where both are silent.
	if cfg.Handoff.MaxConcurrentValidations != 8 {
		t.Errorf("got max_concurrent_validations %d, want default 8", cfg.Handoff.MaxConcurrentValidations)
	}
}

func TestLoadPipelineBadEnvFallsBack(t *testing.T) {
	path := writeYAML(t, "")

	t.Setenv("BATON_BREAKER_MAX_FAILURES", "notanumber")
	t.Setenv("BATON_BREAKER_TIMEOUT", "invalid-duration")
	t.Setenv("BATON_HANDOFF_TIMEOUT_MS", "abc")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Breaker.MaxFailures != 5 {
		t.Errorf("got max_failures %d, want default 5", cfg.Breaker.MaxFailures)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("got breaker timeout %v, want default 30s", cfg.Breaker.Timeout)
	}
	if cfg.Handoff.DefaultTimeoutMs != 300_000 {
		t.Errorf("got default_timeout_ms %d, want default 300000", cfg.Handoff.DefaultTimeoutMs)
	}
}

func TestLoadPipelineValidationErrorWrapped(t *testing.T) {
	_, err := LoadFrom(writeYAML(t, "server:\n  port: \"\"\n"))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "config validate:") {
		t.Errorf("expected the validate stage in the error, got %q", err)
	}
	if !strings.Contains(err.Error(), "server.port is required") {
		t.Errorf("expected the violated rule in the error, got %q", err)
	}
}

func TestLoadPipelineYAMLErrorWrapped(t *testing.T) {
	_, err := LoadFrom(writeYAML(t, "{{{invalid yaml"))
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
	if !strings.Contains(err.Error(), "config yaml:") {
		t.Errorf("expected the yaml stage in the error, got %q", err)
	}
}

func TestLoadHonorsConfigEnvVar(t *testing.T) {
	path := writeYAML(t, "server:\n  port: \"6001\"\n")
	t.Setenv("BATON_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "6001" {
		t.Errorf("got port %q, want 6001 from BATON_CONFIG file", cfg.Server.Port)
	}
}

func TestHolderReloadPicksUpChanges(t *testing.T) {
	path := writeYAML(t, `
logging:
  level: "info"
handoff:
  default_timeout_ms: 60000
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	holder := NewHolder(cfg, path)

	if got := holder.Get(); got.Logging.Level != "info" {
		t.Fatalf("initial level should be info, got %q", got.Logging.Level)
	}

	rewriteFile(t, path, `
logging:
  level: "debug"
handoff:
  default_timeout_ms: 120000
`)
	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	got := holder.Get()
	if got.Logging.Level != "debug" {
		t.Errorf("after reload: got level %q, want debug", got.Logging.Level)
	}
	if got.Handoff.DefaultTimeoutMs != 120_000 {
		t.Errorf("after reload: got default_timeout_ms %d, want 120000", got.Handoff.DefaultTimeoutMs)
	}
}

func TestHolderReloadKeepsOldConfigOnError(t *testing.T) {
	path := writeYAML(t, "server:\n  port: \"9090\"\n")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	holder := NewHolder(cfg, path)

	// The replacement config is invalid, so the reload must fail and
	// leave the running config alone.
	rewriteFile(t, path, "server:\n  port: \"\"\n")
	if err := holder.Reload(); err == nil {
		t.Fatal("expected reload to fail for invalid config")
	}

	if got := holder.Get(); got.Server.Port != "9292" {
		t.Errorf("old config should survive a failed reload, got port %q", got.Server.Port)
	}
}

func TestHolderReloadAppliesEnv(t *testing.T) {
	path := writeYAML(t, "logging:\n  level: \"info\"\n")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	holder := NewHolder(cfg, path)

	t.Setenv("BATON_LOG_LEVEL", "error")
	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got := holder.Get(); got.Logging.Level != "error" {
		t.Errorf("env should apply on reload: got %q, want error", got.Logging.Level)
	}
}
