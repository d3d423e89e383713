// Package core is the HTTP chassis of the service: a chi router with the
// shared middleware chain, the JSON response envelope and the health
// endpoint. Domain handlers live in internal/api and register their routes
// through the registrar slices so this package never imports them.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultShutdownGrace  = 10 * time.Second
)

// MetricsCollector records API telemetry. Endpoint is the chi route
// pattern, never the raw path, to keep label cardinality bounded.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of routes on a router.
type RouteRegistrar func(r chi.Router)

// Server holds the router and its cross-cutting dependencies.
type Server struct {
	Logger       *slog.Logger
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount under /v1; RootRouteRegistrars mount at the
	// root (internal webhooks, /metrics).
	V1RouteRegistrars   []RouteRegistrar
	RootRouteRegistrars []RouteRegistrar

	// RequestTimeout bounds each request context. Zero selects the default.
	RequestTimeout time.Duration

	router *chi.Mux
}

// NewServer creates a Server. Routes are mounted separately by MountRoutes
// so callers can add registrars first.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for up to the shutdown grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
