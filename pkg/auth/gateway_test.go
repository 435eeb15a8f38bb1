package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestOriginAllowlist(t *testing.T) {
	h := Middleware(SecConfig{AllowedOrigins: []string{"https://app.test"}})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign origin status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
	req.Header.Set("Origin", "https://app.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("allowed origin status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.test" {
		t.Fatalf("cors header missing")
	}
}

func TestRateLimiting(t *testing.T) {
	h := Middleware(SecConfig{RPS: 1, Burst: 2})(okHandler())

	limited := false
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
		req.RemoteAddr = "10.1.1.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatalf("burst never limited")
	}

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
	req.RemoteAddr = "10.2.2.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh client limited: %d", rec.Code)
	}
}

func TestRateLimitDefaults(t *testing.T) {
	// burst left unset falls back to the default; RPS zero disables
	// limiting entirely
	if got := (SecConfig{RPS: 1}).withDefaults().Burst; got != defaultBurst {
		t.Fatalf("defaulted burst = %d", got)
	}
	if got := (SecConfig{}).withDefaults().Burst; got != 0 {
		t.Fatalf("disabled limiter grew a burst: %d", got)
	}

	h := Middleware(SecConfig{})(okHandler())
	for i := 0; i < 30; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
		req.RemoteAddr = "10.3.3.3:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d limited with limiter off: %d", i, rec.Code)
		}
	}
}
