package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterAllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow("patient-1") {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if rl.Allow("patient-1") {
		t.Fatal("request beyond burst should be rejected")
	}
	// A different caller has its own bucket.
	if !rl.Allow("patient-2") {
		t.Fatal("separate caller should have a fresh bucket")
	}
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	handler := RateLimit(0.001, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/triage/message", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewareKeysByRemoteAddr(t *testing.T) {
	handler := RateLimit(0.001, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Clients cannot dodge the limiter by varying proxy headers; only
	// RemoteAddr (normalized by chi's RealIP upstream) keys the bucket.
	first := httptest.NewRequest(http.MethodPost, "/api/triage/message", nil)
	first.Header.Set("X-Real-Ip", "10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/triage/message", nil)
	second.Header.Set("X-Real-Ip", "10.0.0.2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request with a different header should share the bucket, got %d", rec.Code)
	}
}
