package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"plotwatch/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type metricsCall struct {
	method, endpoint, status string
}

type mockMetricsCollector struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (m *mockMetricsCollector) RecordRequest(method, endpoint, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricsCall{method, endpoint, status})
}

func newMountedServer(t *testing.T, v1 ...RouteRegistrar) *Server {
	t.Helper()
	srv, err := NewServer(testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.V1RouteRegistrars = v1
	return srv
}

func TestNewServer_RequiresLogger(t *testing.T) {
	if _, err := NewServer(nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestMountRoutes_V1AndRootRegistrars(t *testing.T) {
	srv := newMountedServer(t, func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			Data(w, r, http.StatusOK, "pong")
		})
	})
	srv.RootRouteRegistrars = []RouteRegistrar{func(r chi.Router) {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("m")) })
	}}
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"data":"pong"}` {
		t.Errorf("unexpected body %s", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected generated X-Request-Id header")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "m" {
		t.Errorf("root registrar not mounted: %d %q", rec.Code, rec.Body.String())
	}
}

func TestMountRoutes_NotFoundUsesEnvelope(t *testing.T) {
	srv := newMountedServer(t)
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "not_found_route" {
		t.Errorf("unexpected code %q", resp.Error.Code)
	}
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-123" {
		t.Errorf("context request id = %q", seen)
	}
	if rec.Header().Get("X-Request-Id") != "req-123" {
		t.Errorf("response header = %q", rec.Header().Get("X-Request-Id"))
	}
}

func TestRecoverer_WritesEnvelope(t *testing.T) {
	srv := newMountedServer(t, func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	})
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(types.ErrCodeInternalUnexpected)) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	metrics := &mockMetricsCollector{}
	srv := newMountedServer(t, func(r chi.Router) {
		r.Get("/plots/{plotID}/alerts", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})
	srv.Metrics = metrics
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/plots/42/alerts", nil))

	if len(metrics.calls) != 1 {
		t.Fatalf("expected 1 metrics call, got %d", len(metrics.calls))
	}
	want := metricsCall{http.MethodGet, "/v1/plots/{plotID}/alerts", "418"}
	if metrics.calls[0] != want {
		t.Errorf("got %+v, want %+v", metrics.calls[0], want)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := newMountedServer(t)
	srv.MountRoutes()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}
