package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := call("198.51.100.1:1000"); got != http.StatusOK {
		t.Fatalf("first call = %d", got)
	}
	if got := call("198.51.100.1:2000"); got != http.StatusTooManyRequests {
		t.Fatalf("second call from same ip = %d, want 429", got)
	}
	if got := call("198.51.100.2:1000"); got != http.StatusOK {
		t.Fatalf("other client = %d", got)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	clock := time.Now()
	rl.now = func() time.Time { return clock }

	rl.get("a")
	clock = clock.Add(2 * time.Minute)
	rl.get("b")
	clock = clock.Add(2 * time.Minute)

	if removed := rl.Sweep(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := rl.clients["b"]; !ok {
		t.Fatal("recent client swept")
	}
}
