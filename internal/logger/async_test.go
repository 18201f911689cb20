package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// sinkHandler collects records for assertions, optionally slowing down to
// simulate a congested sink.
type sinkHandler struct {
	mu    sync.Mutex
	msgs  []string
	delay time.Duration
}

func (h *sinkHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *sinkHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.msgs = append(h.msgs, rec.Message)
	h.mu.Unlock()
	return nil
}

func (h *sinkHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *sinkHandler) WithGroup(string) slog.Handler      { return h }

func (h *sinkHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.msgs))
	copy(out, h.msgs)
	return out
}

func record(msg string) slog.Record {
	return slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0)
}

func TestAsyncDeliversToSink(t *testing.T) {
	sink := &sinkHandler{}
	h := NewAsyncHandler(sink, 16, 1)

	if err := h.Handle(context.Background(), record("one")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	h.Close()

	got := sink.messages()
	if len(got) != 1 || got[0] != "one" {
		t.Fatalf("sink received %v, want [one]", got)
	}
}

func TestAsyncSingleWorkerKeepsOrder(t *testing.T) {
	sink := &sinkHandler{}
	h := NewAsyncHandler(sink, 64, 1)

	want := []string{"first", "second", "third"}
	for _, msg := range want {
		_ = h.Handle(context.Background(), record(msg))
	}
	h.Close()

	got := sink.messages()
	if len(got) != len(want) {
		t.Fatalf("sink received %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d = %q, want %q (full order: %v)", i, got[i], want[i], got)
		}
	}
}

func TestAsyncCloseFlushesQueue(t *testing.T) {
	sink := &sinkHandler{}
	h := NewAsyncHandler(sink, 256, 2)

	const total = 200
	for range total {
		_ = h.Handle(context.Background(), record("queued"))
	}

	// Close blocks until every enqueued record reaches the sink.
	h.Close()

	if got := len(sink.messages()); got != total {
		t.Fatalf("sink received %d records after Close, want %d", got, total)
	}
	if h.DroppedCount() != 0 {
		t.Fatalf("dropped %d records with a large queue", h.DroppedCount())
	}
}

func TestAsyncFullQueueDropsAndReports(t *testing.T) {
	// A slow sink behind a one-slot queue forces drops.
	sink := &sinkHandler{delay: 5 * time.Millisecond}
	h := NewAsyncHandler(sink, 1, 1)

	for range 40 {
		_ = h.Handle(context.Background(), record("flood"))
	}
	h.Close()

	if h.DroppedCount() == 0 {
		t.Fatal("flooding a one-slot queue dropped nothing")
	}

	// The drop total is written to the sink as the final record.
	got := sink.messages()
	if len(got) == 0 || got[len(got)-1] != "log records dropped under backpressure" {
		t.Fatalf("missing drop summary, sink tail: %v", got)
	}
}

func TestAsyncHandleAfterCloseIsSynchronous(t *testing.T) {
	sink := &sinkHandler{}
	h := NewAsyncHandler(sink, 16, 1)
	h.Close()

	if err := h.Handle(context.Background(), record("late")); err != nil {
		t.Fatalf("Handle after Close: %v", err)
	}

	got := sink.messages()
	if len(got) != 1 || got[0] != "late" {
		t.Fatalf("late record not delivered synchronously, sink: %v", got)
	}
}

func TestAsyncCloseTwice(t *testing.T) {
	h := NewAsyncHandler(&sinkHandler{}, 16, 1)
	h.Close()
	h.Close()
}

func TestAsyncDerivedHandlersShareQueue(t *testing.T) {
	sink := &sinkHandler{}
	h := NewAsyncHandler(sink, 64, 1)

	store := h.WithAttrs([]slog.Attr{slog.String("component", "store")})
	grouped := h.WithGroup("handoff")

	_ = store.Handle(context.Background(), record("from attrs"))
	_ = grouped.Handle(context.Background(), record("from group"))

	// Closing the root drains records enqueued through derived handlers.
	h.Close()

	if got := len(sink.messages()); got != 2 {
		t.Fatalf("sink received %d records via derived handlers, want 2", got)
	}
}

func TestAsyncConcurrentProducers(t *testing.T) {
	const producers = 50
	const perProducer = 40

	sink := &sinkHandler{}
	h := NewAsyncHandler(sink, producers*perProducer, 4)

	var wg sync.WaitGroup
	wg.Add(producers)
	for range producers {
		go func() {
			defer wg.Done()
			for range perProducer {
				_ = h.Handle(context.Background(), record("concurrent"))
			}
		}()
	}
	wg.Wait()
	h.Close()

	if got := len(sink.messages()); got != producers*perProducer {
		t.Fatalf("sink received %d records, want %d", got, producers*perProducer)
	}
}
