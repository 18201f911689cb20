//go:build load

// Package load holds load exercises for the HTTP rate limiter. They are
// kept out of the regular test set; run with:
//
//	go test -tags load -count=1 -timeout 60s ./tests/load/
package load

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relaykit/baton/internal/middleware"
)

// newLimited returns a limiter and a handler that answers 200 whenever
// the limiter lets a request through.
func newLimited(rate float64, burst int) (*middleware.RateLimiter, http.Handler) {
	rl := middleware.NewRateLimiter(rate, burst)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return rl, h
}

func fire(handler http.Handler, addr string) int {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func clientAddr(i int) string {
	return fmt.Sprintf("10.%d.%d.%d", i/65536, (i/256)%256, i%256)
}

// A flood from one client against a small bucket. The bucket starts with
// 10 tokens and refills at 10/s, so nearly all of the 1000 near-instant
// requests must bounce.
func TestFloodFromOneClientMostlyRejected(t *testing.T) {
	_, handler := newLimited(10, 10)

	const workers = 8
	const perWorker = 125

	var ok, limited atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for range perWorker {
				switch fire(handler, "10.0.0.1") {
				case http.StatusOK:
					ok.Add(1)
				case http.StatusTooManyRequests:
					limited.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	total := ok.Load() + limited.Load()
	t.Logf("total=%d ok=%d limited=%d", total, ok.Load(), limited.Load())

	if limited.Load() == 0 {
		t.Fatal("expected the flood to hit the limiter")
	}
	// Leave slack for refill on a slow machine, but the overwhelming
	// share must still be rejected.
	if ok.Load() > total/5 {
		t.Errorf("too many requests passed: ok=%d of %d", ok.Load(), total)
	}
}

// Exactly burst-many concurrent requests all pass; the next one does not.
func TestBurstFullyAbsorbed(t *testing.T) {
	const burst = 32
	_, handler := newLimited(1, burst)

	var ok, limited atomic.Int64
	var wg sync.WaitGroup
	wg.Add(burst)
	for range burst {
		go func() {
			defer wg.Done()
			switch fire(handler, "10.0.0.1") {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusTooManyRequests:
				limited.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != burst {
		t.Errorf("expected all %d burst requests to pass, got ok=%d limited=%d",
			burst, ok.Load(), limited.Load())
	}
	if code := fire(handler, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("request past the burst: expected 429, got %d", code)
	}
}

// Concurrent first requests from distinct clients race to create their
// buckets. Every one gets its own full bucket and passes.
func TestManyClientsEachGetTheirOwnBucket(t *testing.T) {
	const clients = 120
	rl, handler := newLimited(1, 1)

	var ok atomic.Int64
	var wg sync.WaitGroup
	wg.Add(clients)
	for i := range clients {
		go func(idx int) {
			defer wg.Done()
			if fire(handler, clientAddr(idx)) == http.StatusOK {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if ok.Load() != clients {
		t.Errorf("expected all %d first requests to pass, got %d", clients, ok.Load())
	}
	if rl.Len() != clients {
		t.Errorf("expected %d buckets, got %d", clients, rl.Len())
	}
}

// The sweeper drains a table full of stale buckets.
func TestStaleBucketsSweptUnderLoad(t *testing.T) {
	const buckets = 600
	rl, handler := newLimited(10, 10)

	for i := range buckets {
		fire(handler, clientAddr(i))
	}
	if rl.Len() != buckets {
		t.Fatalf("expected %d buckets, got %d", buckets, rl.Len())
	}

	time.Sleep(10 * time.Millisecond)

	stop := rl.StartCleanup(5*time.Millisecond, time.Millisecond)
	defer stop()

	time.Sleep(50 * time.Millisecond)

	if rl.Len() != 0 {
		t.Errorf("expected an empty table after the sweep, got %d buckets", rl.Len())
	}
}
