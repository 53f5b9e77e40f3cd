package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate float64, burst int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(rate, burst)
	l.now = clock.now
	return l, clock
}

func TestRequestsWithinBurstAreAllowed(t *testing.T) {
	burst := 5
	limiter, _ := newTestLimiter(1, burst)

	for i := 0; i < burst; i++ {
		if ok, _ := limiter.allow("192.168.1.1"); !ok {
			t.Errorf("request %d within burst of %d should be allowed", i+1, burst)
		}
	}
	if ok, wait := limiter.allow("192.168.1.1"); ok || wait <= 0 {
		t.Errorf("request exceeding burst should be denied with a wait, got ok=%v wait=%v", ok, wait)
	}
}

func TestTokensReplenishOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(10, 2)

	limiter.allow("192.168.1.1")
	limiter.allow("192.168.1.1")
	if ok, _ := limiter.allow("192.168.1.1"); ok {
		t.Fatal("expected request to be denied after exhausting burst")
	}

	clock.advance(150 * time.Millisecond)

	if ok, _ := limiter.allow("192.168.1.1"); !ok {
		t.Error("expected request to be allowed after token replenishment")
	}
}

func TestTokensDoNotExceedBurst(t *testing.T) {
	burst := 3
	limiter, clock := newTestLimiter(100, burst)

	limiter.allow("192.168.1.1")
	clock.advance(time.Hour)

	allowed := 0
	for i := 0; i < burst+2; i++ {
		if ok, _ := limiter.allow("192.168.1.1"); ok {
			allowed++
		}
	}
	if allowed != burst {
		t.Errorf("expected %d requests allowed, got %d", burst, allowed)
	}
}

func TestDifferentClientsHaveIndependentLimits(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)

	limiter.allow("10.0.0.1")
	if ok, _ := limiter.allow("10.0.0.1"); ok {
		t.Error("expected second request from first client to be denied")
	}
	if ok, _ := limiter.allow("10.0.0.2"); !ok {
		t.Error("expected first request from second client to be allowed")
	}
}

func TestEvictIdle(t *testing.T) {
	limiter, clock := newTestLimiter(1, 1)
	limiter.allow("10.0.0.1")
	clock.advance(idleTTL / 2)
	limiter.allow("10.0.0.2")

	clock.advance(idleTTL/2 + time.Second)
	limiter.evictIdle()

	if _, ok := limiter.buckets["10.0.0.1"]; ok {
		t.Error("expected idle client to be evicted")
	}
	if _, ok := limiter.buckets["10.0.0.2"]; !ok {
		t.Error("expected recent client to be kept")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(0.5, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	send := func(remote, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/consent/youtube", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("192.168.1.1:12345", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected first request to pass, got %d %q", rec.Code, rec.Body.String())
	}

	rec := send("192.168.1.1:23456", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for same client on another port, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After=2, got %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error body, got %s", ct)
	}

	if rec := send("10.0.0.1:1", "203.0.113.5, 10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("expected another peer to have its own bucket, got %d", rec.Code)
	}
}

func TestMiddlewareIgnoresRotatedForwardedFor(t *testing.T) {
	limiter, _ := newTestLimiter(0.5, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for _, forwarded := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/consent/youtube", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", codes[0])
	}
	for i, code := range codes[1:] {
		if code != http.StatusTooManyRequests {
			t.Errorf("request %d with a new X-Forwarded-For: expected 429, got %d", i+2, code)
		}
	}
}
