// Package handlers provides the HTTP handlers for the alert engine API:
// event ingestion, the dashboard read API, and rule administration.
package handlers

import (
	"github.com/afikmenashe/alert-engine/internal/metrics"
)

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	ingester Ingester
	rules    RuleAdmin
	repo     Repository
	stats    StatsSource
	services ServiceMetricsReader
	metrics  metrics.Recorder
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithServiceMetrics enables GET /api/v1/services/metrics.
func WithServiceMetrics(r ServiceMetricsReader) Option {
	return func(h *Handlers) {
		h.services = r
	}
}

// WithMetrics sets the recorder used for ingestion errors.
func WithMetrics(m metrics.Recorder) Option {
	return func(h *Handlers) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHandlers creates a new handlers instance.
func NewHandlers(ingester Ingester, rules RuleAdmin, repo Repository, stats StatsSource, opts ...Option) *Handlers {
	h := &Handlers{
		ingester: ingester,
		rules:    rules,
		repo:     repo,
		stats:    stats,
		metrics:  metrics.NewNoOp(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
