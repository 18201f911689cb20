package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes and stops a handler. Synchronous handlers return a
// no-op implementation.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// core is the queue shared by an AsyncHandler and every handler derived
// from it via WithAttrs or WithGroup. The queue channel is never closed;
// workers are told to stop through the stop channel instead, so a late
// Handle call can never panic on send.
type core struct {
	queue   chan slog.Record
	stop    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64
	closed  atomic.Bool
}

// AsyncHandler decouples log emission from log writing with a buffered
// channel drained by background workers. When the buffer is full the
// record is dropped rather than blocking the caller.
type AsyncHandler struct {
	inner slog.Handler
	core  *core
}

// NewAsyncHandler wraps inner with a queue of the given capacity and
// starts the given number of drain workers.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	if capacity < 1 {
		capacity = 1
	}
	if workers < 1 {
		workers = 1
	}

	h := &AsyncHandler{
		inner: inner,
		core: &core{
			queue: make(chan slog.Record, capacity),
			stop:  make(chan struct{}),
		},
	}
	h.core.wg.Add(workers)
	for range workers {
		go h.work()
	}
	return h
}

func (h *AsyncHandler) work() {
	defer h.core.wg.Done()
	for {
		select {
		case rec := <-h.core.queue:
			_ = h.inner.Handle(context.Background(), rec)
		case <-h.core.stop:
			return
		}
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it if the queue is full. After
// Close the handler writes synchronously instead.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.core.closed.Load() {
		return h.inner.Handle(ctx, rec)
	}
	select {
	case h.core.queue <- rec:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

// WithAttrs derives a handler that shares this handler's queue and workers.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

// WithGroup derives a handler that shares this handler's queue and workers.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// DroppedCount returns the number of records dropped on a full queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.core.dropped.Load()
}

// Close stops the workers, writes out anything left in the queue, and
// reports the number of dropped records if there were any.
func (h *AsyncHandler) Close() {
	if h.core.closed.Swap(true) {
		return
	}
	close(h.core.stop)
	h.core.wg.Wait()

	for {
		select {
		case rec := <-h.core.queue:
			_ = h.inner.Handle(context.Background(), rec)
		default:
			if n := h.core.dropped.Load(); n > 0 {
				rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped under backpressure", 0)
				rec.AddAttrs(slog.Int64("count", n))
				_ = h.inner.Handle(context.Background(), rec)
			}
			return
		}
	}
}
