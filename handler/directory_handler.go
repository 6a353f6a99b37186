package handler

import (
	"encoding/json"
	"net/http"

	"caseflow/models"
	"caseflow/repository"
)

// DirectoryHandler handles sync of the agent and case directories. Upstream
// systems of record push records here; this service never creates agents or
// cases on its own.
type DirectoryHandler struct {
	agents *repository.AgentRepository
	cases  *repository.CaseRepository
}

// NewDirectoryHandler creates a new directory handler
func NewDirectoryHandler(agents *repository.AgentRepository, cases *repository.CaseRepository) *DirectoryHandler {
	return &DirectoryHandler{agents: agents, cases: cases}
}

// UpsertAgent handles PUT /api/v1/agents/{agentId}
func (h *DirectoryHandler) UpsertAgent(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathID(r, "agentId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid agent ID")
		return
	}
	var req models.UpsertAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	if req.Name == "" || req.Geography == "" {
		respondWithError(w, http.StatusBadRequest, "Validation error", "name and geography are required")
		return
	}
	if req.Capacity <= 0 {
		respondWithError(w, http.StatusBadRequest, "Validation error", "capacity must be positive")
		return
	}

	agent, err := h.agents.UpsertAgent(agentID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, agent)
}

// GetAgent handles GET /api/v1/agents/{agentId}
func (h *DirectoryHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathID(r, "agentId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid agent ID")
		return
	}
	agent, err := h.agents.GetAgentByID(agentID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, agent)
}

// UpsertCase handles PUT /api/v1/cases/{caseId}
func (h *DirectoryHandler) UpsertCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathID(r, "caseId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid case ID")
		return
	}
	var req models.UpsertCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	if req.ExternalCaseID == "" || req.Geography == "" {
		respondWithError(w, http.StatusBadRequest, "Validation error", "external_case_id and geography are required")
		return
	}

	c, err := h.cases.UpsertCase(caseID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

// GetCase handles GET /api/v1/cases/{caseId}
func (h *DirectoryHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathID(r, "caseId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid case ID")
		return
	}
	c, err := h.cases.GetCaseByID(caseID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}
