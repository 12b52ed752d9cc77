package handlers

import (
	"net/http"
	"strings"

	"github.com/afikmenashe/alert-engine/internal/events"
)

// IngestResponse lists the notifications queued for an event.
type IngestResponse struct {
	Notifications []string `json:"notifications"`
}

// IngestEvent evaluates one classified event.
// POST /api/v1/events
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req events.Classified
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Article.URL) == "" && strings.TrimSpace(req.Article.Title) == "" {
		http.Error(w, "article url or title is required", http.StatusBadRequest)
		return
	}

	ids, err := h.ingester.Ingest(r.Context(), req.Report, req.Article)
	if err != nil {
		h.metrics.RecordError()
		if handleError(w, err, "event", req.Article.URL) {
			return
		}
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusAccepted, IngestResponse{Notifications: ids})
}
