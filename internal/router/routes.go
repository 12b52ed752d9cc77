package router

import (
	"log/slog"
	"net/http"
)

func (r *Router) setupRoutes() {
	// Ingestion
	r.mux.HandleFunc("/api/v1/events", r.handlers.IngestEvent)

	// Notification endpoints
	r.mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("notification_id") != "" {
			r.handlers.GetNotification(w, req)
		} else {
			r.handlers.ListNotifications(w, req)
		}
	})

	// Dashboard stats
	r.mux.HandleFunc("/api/v1/stats", r.handlers.GetStats)
	r.mux.HandleFunc("/api/v1/stats/severity", r.handlers.GetSeverityCounts)
	r.mux.HandleFunc("/api/v1/stats/region", r.handlers.GetRegionCounts)

	// Rule endpoints
	r.mux.HandleFunc("/api/v1/rules", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			r.handlers.CreateRule(w, req)
		case http.MethodGet:
			if req.URL.Query().Get("rule_id") != "" {
				r.handlers.GetRule(w, req)
			} else {
				r.handlers.ListRules(w, req)
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	r.mux.HandleFunc("/api/v1/rules/active-count", r.handlers.GetActiveRuleCount)
	r.mux.HandleFunc("/api/v1/rules/update", r.handlers.UpdateRule)
	r.mux.HandleFunc("/api/v1/rules/toggle", r.handlers.ToggleRule)
	r.mux.HandleFunc("/api/v1/rules/delete", r.handlers.DeleteRule)

	// Service metrics (from Redis)
	r.mux.HandleFunc("/api/v1/services/metrics", r.handlers.GetServiceMetrics)

	if r.websocket != nil {
		r.mux.HandleFunc("/ws", r.websocket)
	}
	if r.metrics != nil {
		r.mux.Handle("/metrics", r.metrics)
	}

	r.mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if r.health != nil {
			if err := r.health(req.Context()); err != nil {
				slog.Warn("Health check failed", "error", err)
				http.Error(w, "Store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
