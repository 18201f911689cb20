package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relaykit/baton/internal/config"
	"github.com/relaykit/baton/internal/domain/event"
	"github.com/relaykit/baton/internal/events"
)

func TestInitDisabled(t *testing.T) {
	providers, err := Init(config.Telemetry{Enabled: false}, "baton-test")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if providers == nil {
		t.Fatal("expected noop providers, got nil")
	}
	if err := providers.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on noop providers failed: %v", err)
	}
}

func TestShutdownNil(t *testing.T) {
	var providers *Providers
	if err := providers.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on nil providers failed: %v", err)
	}
}

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	if m.MessagesSent == nil || m.HandoffsInitiated == nil || m.HandoffsCompleted == nil ||
		m.HandoffTimeouts == nil || m.RemoteDuration == nil {
		t.Fatal("expected all instruments to be created")
	}
}

func TestObserveRemoteCall(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// Against the noop global providers both signals must be inert.
	m.ObserveRemoteCall(context.Background(), "get", 3*time.Millisecond, nil)
	m.ObserveRemoteCall(context.Background(), "set", 5*time.Millisecond, errors.New("backend down"))
}

func TestBridgeAttachDetach(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	notifier := events.NewNotifier()

	detach := m.Bridge(notifier)

	types := []event.Type{
		event.TypeMessageSent,
		event.TypeHandoffInitiated,
		event.TypeHandoffCompleted,
		event.TypeHandoffTimeout,
	}
	for _, typ := range types {
		if got := notifier.HandlerCount(typ); got != 1 {
			t.Fatalf("expected 1 handler for %s, got %d", typ, got)
		}
	}

	notifier.Emit(event.Event{Type: event.TypeMessageSent, At: 1})
	notifier.Emit(event.Event{Type: event.TypeHandoffTimeout, At: 2})

	detach()
	for _, typ := range types {
		if got := notifier.HandlerCount(typ); got != 0 {
			t.Fatalf("expected 0 handlers for %s after detach, got %d", typ, got)
		}
	}
}
