package mempub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/relaykit/baton/internal/port/pubsub"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	got := make(chan []byte, 1)
	_, err := b.Subscribe(context.Background(), pubsub.MessageChannel("agent-b"), func(_ context.Context, _ string, data []byte) error {
		got <- data
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), pubsub.MessageChannel("agent-b"), []byte(`{"type":"new_message"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case data := <-got:
		if string(data) != `{"type":"new_message"}` {
			t.Fatalf("unexpected payload: %s", data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestPublishSkipsOtherChannels(t *testing.T) {
	b := New()
	defer b.Close()

	got := make(chan struct{}, 1)
	if _, err := b.Subscribe(context.Background(), "agent:a:messages", func(_ context.Context, _ string, _ []byte) error {
		got <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), "agent:b:messages", []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-got:
		t.Fatal("handler fired for a channel it never subscribed to")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	count := 0
	cancel, err := b.Subscribe(context.Background(), "agent:a:handoffs", func(_ context.Context, _ string, _ []byte) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), "agent:a:handoffs", []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	cancel()

	if err := b.Publish(context.Background(), "agent:a:handoffs", []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
}

func TestMultipleSubscribersAllNotified(t *testing.T) {
	b := New()
	defer b.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		if _, err := b.Subscribe(context.Background(), "agent:c:messages", func(_ context.Context, _ string, _ []byte) error {
			wg.Done()
			return nil
		}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	if err := b.Publish(context.Background(), "agent:c:messages", []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers were notified")
	}
}

func TestCloseDisconnects(t *testing.T) {
	b := New()
	if !b.IsConnected() {
		t.Fatal("expected new bus to be connected")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if b.IsConnected() {
		t.Fatal("expected closed bus to report disconnected")
	}
}
