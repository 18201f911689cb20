//go:build integration

package integration_test

import (
	"net/http"
	"testing"
)

func TestHealthLiveness(t *testing.T) {
	var body struct {
		Status         string `json:"status"`
		Backend        string `json:"backend"`
		StoreConnected bool   `json:"store_connected"`
	}
	if code := getJSON(t, "/health", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status 'ok', got %q", body.Status)
	}
	if body.Backend != "redis" {
		t.Fatalf("expected backend 'redis', got %q", body.Backend)
	}
	if !body.StoreConnected {
		t.Fatal("expected store_connected true with miniredis up")
	}
}

func TestAPIVersion(t *testing.T) {
	var body struct {
		Version string `json:"version"`
	}
	if code := getJSON(t, "/api/v1/", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Version == "" {
		t.Fatal("expected non-empty version")
	}
}

func TestStatusEndpoint(t *testing.T) {
	var body struct {
		ActiveHandoffs  int  `json:"active_handoffs"`
		PendingMessages int  `json:"pending_messages"`
		StoreConnected  bool `json:"store_connected"`
	}
	if code := getJSON(t, "/api/v1/status", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !body.StoreConnected {
		t.Fatal("expected store_connected true")
	}
	if body.ActiveHandoffs < 0 || body.PendingMessages < 0 {
		t.Fatalf("counts must not be negative: %+v", body)
	}
}
