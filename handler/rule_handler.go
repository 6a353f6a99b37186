package handler

import (
	"encoding/json"
	"net/http"

	"caseflow/middleware"
	"caseflow/models"
	"caseflow/service"
)

// RuleHandler handles HTTP requests for allocation rules
type RuleHandler struct {
	service *service.RuleService
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(svc *service.RuleService) *RuleHandler {
	return &RuleHandler{service: svc}
}

// CreateRule handles POST /api/v1/rules
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	rule, err := h.service.CreateRule(&req, middleware.Actor(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rule)
}

// GetRule handles GET /api/v1/rules/{ruleId}
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathID(r, "ruleId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid rule ID")
		return
	}
	rule, err := h.service.GetRule(ruleID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rule)
}

// ListRules handles GET /api/v1/rules
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

// UpdateRule handles PUT /api/v1/rules/{ruleId}
func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathID(r, "ruleId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid rule ID")
		return
	}
	var req models.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	rule, err := h.service.UpdateRule(ruleID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rule)
}

// DeactivateRule handles DELETE /api/v1/rules/{ruleId}
// Rules are soft-deleted; applied allocations keep their rule reference.
func (h *RuleHandler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathID(r, "ruleId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid rule ID")
		return
	}
	if err := h.service.DeactivateRule(ruleID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rule_id": ruleID,
		"status":  models.RuleStatusInactive,
	})
}

// Simulate handles POST /api/v1/rules/{ruleId}/simulate
func (h *RuleHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathID(r, "ruleId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid rule ID")
		return
	}
	req, err := decodeApplyRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	result, err := h.service.Simulate(ruleID, req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Apply handles POST /api/v1/rules/{ruleId}/apply
func (h *RuleHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathID(r, "ruleId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid rule ID")
		return
	}
	req, err := decodeApplyRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	resp, err := h.service.Apply(ruleID, req, middleware.Actor(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// decodeApplyRequest tolerates an empty body; simulate and apply both work
// with rule defaults when no overrides are sent.
func decodeApplyRequest(r *http.Request) (*models.ApplyRuleRequest, error) {
	var req models.ApplyRuleRequest
	if r.Body == nil || r.ContentLength == 0 {
		return &req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}
