// Package router provides HTTP routing for the alert engine API. It sets up
// routes and applies CORS and request metrics middleware.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/afikmenashe/alert-engine/internal/handlers"
	"github.com/afikmenashe/alert-engine/pkg/metrics"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux       *http.ServeMux
	handlers  *handlers.Handlers
	websocket http.HandlerFunc
	metrics   http.Handler
	collector *metrics.Collector
	health    func(ctx context.Context) error
}

// Option configures optional routes.
type Option func(*Router)

// WithWebSocket mounts the live dashboard feed on /ws.
func WithWebSocket(fn http.HandlerFunc) Option {
	return func(r *Router) { r.websocket = fn }
}

// WithMetricsHandler mounts a Prometheus handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(r *Router) { r.metrics = h }
}

// WithCollector counts API requests in the service metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(r *Router) { r.collector = c }
}

// WithHealthCheck makes /health report 503 when check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(r *Router) { r.health = check }
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *handlers.Handlers, opts ...Option) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: h,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(metricsMiddleware(r.collector)(r.mux))
}

// NewServer creates an HTTP server for the router.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
