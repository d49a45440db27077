package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orgdir/orgdir/internal/cache"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"generated when absent", "", false},
		{"reused when well formed", "abc-123", true},
		{"replaced when it has spaces", "abc 123", false},
		{"replaced when too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"replaced when it has newlines", "abc\ninjected", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("no request id in context")
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if tt.reuse && seen != tt.incoming {
				t.Errorf("request id = %q, want %q", seen, tt.incoming)
			}
			if !tt.reuse && seen == tt.incoming {
				t.Errorf("request id %q should have been replaced", seen)
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestID(Recoverer(logger, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"internal server error"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if !strings.Contains(buf.String(), `"panic":"boom"`) {
		t.Errorf("panic not logged: %s", buf.String())
	}
	if strings.Contains(buf.String(), `"stack"`) {
		t.Error("stack should only be logged when enabled")
	}
}

type fakeLimiter struct {
	mu      sync.Mutex
	calls   []string
	allowed bool
	err     error
}

func (f *fakeLimiter) CheckIPRateLimit(_ context.Context, ip string, _, burst int) (*cache.RateLimitResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ip)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &cache.RateLimitResult{
		Allowed:    f.allowed,
		Remaining:  int64(burst - 1),
		RetryAfter: 1500 * time.Millisecond,
	}, nil
}

func TestRateLimitIP(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name        string
		limiter     *fakeLimiter
		enabled     bool
		wantStatus  int
		wantRetry   string
		wantLimited bool
	}{
		{"disabled", &fakeLimiter{}, false, http.StatusOK, "", false},
		{"allowed", &fakeLimiter{allowed: true}, true, http.StatusOK, "", true},
		{"rejected", &fakeLimiter{allowed: false}, true, http.StatusTooManyRequests, "2", true},
		{"limiter error fails open", &fakeLimiter{err: errors.New("redis down")}, true, http.StatusOK, "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := RateLimitIP(RateLimitConfig{
				Logger:  logger,
				Limiter: tt.limiter,
				Enabled: tt.enabled,
				RPS:     10,
				Burst:   5,
			})(ok)

			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			req.RemoteAddr = "203.0.113.9:54321"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
			if called := len(tt.limiter.calls) > 0; called != tt.wantLimited {
				t.Fatalf("limiter called = %v, want %v", called, tt.wantLimited)
			}
			if tt.wantLimited && tt.limiter.calls[0] != "203.0.113.9" {
				t.Errorf("limited ip = %q, want port stripped", tt.limiter.calls[0])
			}
		})
	}
}

func TestRateLimitIP_NilLimiter(t *testing.T) {
	t.Parallel()

	handler := RateLimitIP(RateLimitConfig{Enabled: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

type observation struct {
	method, route string
	status        int
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (f *fakeObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, observation{method, route, status})
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	t.Parallel()

	obs := &fakeObserver{}

	sub := chi.NewRouter()
	sub.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r := chi.NewRouter()
	r.Use(Metrics(obs))
	r.Mount("/users", sub)

	for _, path := range []string{"/users/1", "/users/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	want := []observation{
		{http.MethodGet, "/users/{id}", http.StatusNotFound},
		{http.MethodGet, "/users/{id}", http.StatusNotFound},
		{http.MethodGet, "unmatched", http.StatusNotFound},
	}
	if len(obs.obs) != len(want) {
		t.Fatalf("got %d observations, want %d", len(obs.obs), len(want))
	}
	for i := range want {
		if obs.obs[i] != want[i] {
			t.Errorf("observation %d = %+v, want %+v", i, obs.obs[i], want[i])
		}
	}
}
