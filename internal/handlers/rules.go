package handlers

import (
	"net/http"
	"strings"

	"github.com/afikmenashe/alert-engine/internal/rules"
)

// ToggleRuleRequest represents a request to toggle a rule's active flag.
type ToggleRuleRequest struct {
	Active bool `json:"active"`
}

// RuleRequest is the body of create and update requests. An omitted
// active flag means active on create and unchanged on update.
type RuleRequest struct {
	rules.Rule
	Active *bool `json:"active,omitempty"`
}

// ListRules returns every rule sorted by id.
// GET /api/v1/rules
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.rules.Rules())
}

// GetRule returns one rule.
// GET /api/v1/rules?rule_id=
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	rule, err := h.rules.Rule(id)
	if handleError(w, err, "Rule", id) {
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// CreateRule adds a rule. It takes effect for the next evaluated event.
// POST /api/v1/rules
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	candidate := req.Rule
	candidate.ID = strings.TrimSpace(candidate.ID)
	if candidate.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if _, err := h.rules.Rule(candidate.ID); err == nil {
		http.Error(w, "Rule already exists", http.StatusConflict)
		return
	}
	candidate.Active = req.Active == nil || *req.Active

	rule, err := h.rules.UpsertRule(r.Context(), candidate)
	if handleError(w, err, "Rule", candidate.ID) {
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule replaces an existing rule.
// PUT /api/v1/rules/update?rule_id=
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	id, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	existing, err := h.rules.Rule(id)
	if handleError(w, err, "Rule", id) {
		return
	}
	candidate := req.Rule
	candidate.ID = id
	candidate.Active = existing.Active
	if req.Active != nil {
		candidate.Active = *req.Active
	}

	rule, err := h.rules.UpsertRule(r.Context(), candidate)
	if handleError(w, err, "Rule", id) {
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ToggleRule activates or deactivates a rule.
// POST /api/v1/rules/toggle?rule_id=
func (h *Handlers) ToggleRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	var req ToggleRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.rules.SetRuleActive(r.Context(), id, req.Active)
	if handleError(w, err, "Rule", id) {
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes a rule.
// DELETE /api/v1/rules/delete?rule_id=
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	id, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	if handleError(w, h.rules.DeleteRule(r.Context(), id), "Rule", id) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
