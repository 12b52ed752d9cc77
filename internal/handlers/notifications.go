package handlers

import (
	"net/http"
)

// ListNotifications returns the most recent notifications, newest first.
// GET /api/v1/notifications?limit=
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	list, err := h.repo.Recent(r.Context(), parseLimit(r))
	if handleError(w, err, "notifications", "") {
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetNotification returns one notification.
// GET /api/v1/notifications?notification_id=
func (h *Handlers) GetNotification(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id, ok := requireQueryParam(w, r, "notification_id")
	if !ok {
		return
	}

	n, err := h.repo.GetNotification(r.Context(), id)
	if handleError(w, err, "Notification", id) {
		return
	}
	writeJSON(w, http.StatusOK, n)
}
