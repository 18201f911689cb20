package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	idempotencyPrefix    = "idem:"
	maxIdempotencyBody   = 1 << 20 // 1 MB
)

// ResponseStore persists replayable responses for the idempotency layer.
// The coordinator's dual-backend store satisfies it, so replay survives a
// process restart exactly when the shared backend does.
type ResponseStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)
	Get(ctx context.Context, key string) ([]byte, bool)
}

// storedResponse is a captured HTTP response, replayed on key reuse.
type storedResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that deduplicates mutating requests by
// their Idempotency-Key header. An agent retrying a send or a completion
// over a flaky link gets the original response back instead of creating
// a second record. Requests without the header pass through untouched.
func Idempotency(store ResponseStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if key == "" || !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			storeKey := idempotencyPrefix + key

			if data, ok := store.Get(r.Context(), storeKey); ok && replay(w, key, data) {
				return
			}

			tee := newTeeWriter(w)
			next.ServeHTTP(tee, r)

			if entry, ok := tee.snapshot(); ok {
				store.Put(r.Context(), storeKey, entry, ttl)
			}
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// replay writes the stored response. A corrupt entry reports false before
// anything is written, so the request runs as if it were new.
func replay(w http.ResponseWriter, key string, data []byte) bool {
	var saved storedResponse
	if err := json.Unmarshal(data, &saved); err != nil {
		slog.Warn("idempotency replay skipped, stored response corrupt", "key", key)
		return false
	}

	for name, vals := range saved.Headers {
		for _, v := range vals {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set("Idempotency-Replayed", "true")
	w.WriteHeader(saved.StatusCode)
	_, _ = w.Write(saved.Body)
	return true
}

// teeWriter copies the response into a bounded buffer while serving it.
// Once the cap is crossed the copy is abandoned; the response itself is
// unaffected.
type teeWriter struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	overflow bool
}

func newTeeWriter(w http.ResponseWriter) *teeWriter {
	return &teeWriter{ResponseWriter: w, status: http.StatusOK}
}

func (t *teeWriter) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(p []byte) (int, error) {
	if !t.overflow {
		if t.body.Len()+len(p) > maxIdempotencyBody {
			t.overflow = true
			t.body.Reset()
		} else {
			t.body.Write(p)
		}
	}
	return t.ResponseWriter.Write(p)
}

// snapshot serializes the captured response for storage. Overflowed
// bodies are not replayable, and server errors are left unrecorded so a
// retry gets a fresh attempt instead of the same failure.
func (t *teeWriter) snapshot() ([]byte, bool) {
	if t.overflow || t.status >= http.StatusInternalServerError {
		return nil, false
	}
	data, err := json.Marshal(storedResponse{
		StatusCode: t.status,
		Headers:    t.ResponseWriter.Header().Clone(),
		Body:       t.body.Bytes(),
	})
	if err != nil {
		return nil, false
	}
	return data, true
}
