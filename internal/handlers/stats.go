package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/afikmenashe/alert-engine/internal/database"
	pkgmetrics "github.com/afikmenashe/alert-engine/pkg/metrics"
)

// CountsResponse is a windowed breakdown of notification counts.
type CountsResponse struct {
	Window string          `json:"window"`
	Total  int64           `json:"total"`
	Counts database.Counts `json:"counts"`
}

// GetStats returns the in-memory dashboard snapshot.
// GET /api/v1/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

// GetSeverityCounts returns counts grouped by severity.
// GET /api/v1/stats/severity?window=24h
func (h *Handlers) GetSeverityCounts(w http.ResponseWriter, r *http.Request) {
	h.writeCounts(w, r, h.repo.CountsBySeverity)
}

// GetRegionCounts returns counts grouped by region.
// GET /api/v1/stats/region?window=24h
func (h *Handlers) GetRegionCounts(w http.ResponseWriter, r *http.Request) {
	h.writeCounts(w, r, h.repo.CountsByRegion)
}

type countQuery func(ctx context.Context, window time.Duration) (database.Counts, error)

func (h *Handlers) writeCounts(w http.ResponseWriter, r *http.Request, query countQuery) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	counts, err := query(ctx, window)
	if handleError(w, err, "stats", "") {
		return
	}
	total, err := h.repo.TotalNotifications(ctx, window)
	if handleError(w, err, "stats", "") {
		return
	}
	writeJSON(w, http.StatusOK, CountsResponse{Window: window.String(), Total: total, Counts: counts})
}

// ActiveRuleCountResponse is the body of GET /api/v1/rules/active-count.
type ActiveRuleCountResponse struct {
	Active int `json:"active"`
}

// GetActiveRuleCount returns the number of active rules.
// GET /api/v1/rules/active-count
func (h *Handlers) GetActiveRuleCount(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, ActiveRuleCountResponse{Active: h.rules.ActiveRuleCount()})
}

// GetServiceMetrics returns collector documents published to Redis.
// GET /api/v1/services/metrics[?service=]
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.services == nil {
		http.Error(w, "Service metrics are not configured", http.StatusNotFound)
		return
	}

	ctx := r.Context()
	if name := r.URL.Query().Get("service"); name != "" {
		m, err := h.services.Get(ctx, name)
		if err != nil {
			slog.Warn("Failed to get service metrics", "service", name, "error", err)
			m = &pkgmetrics.ServiceMetrics{ServiceName: name, Status: "offline"}
		}
		writeJSON(w, http.StatusOK, m)
		return
	}

	all, err := h.services.All(ctx)
	if err != nil {
		slog.Error("Failed to get all service metrics", "error", err)
		http.Error(w, "Failed to retrieve service metrics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, all)
}
