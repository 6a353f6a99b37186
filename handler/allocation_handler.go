package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"caseflow/middleware"
	"caseflow/models"
	"caseflow/service"
)

// AllocationHandler handles HTTP requests for case allocations
type AllocationHandler struct {
	service *service.AllocationService
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(svc *service.AllocationService) *AllocationHandler {
	return &AllocationHandler{service: svc}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil && id > 0
}

// Allocate handles POST /api/v1/allocations
func (h *AllocationHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req models.AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}

	resp, err := h.service.Allocate(&req, middleware.Actor(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if resp.NoOp {
		status = http.StatusOK
	}
	respondWithJSON(w, status, resp)
}

// GetAllocation handles GET /api/v1/allocations/{caseId}
func (h *AllocationHandler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathID(r, "caseId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid case ID")
		return
	}
	alloc, err := h.service.GetAllocation(caseID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, alloc)
}

// GetHistory handles GET /api/v1/allocations/{caseId}/history
func (h *AllocationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathID(r, "caseId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid case ID")
		return
	}
	history, err := h.service.GetHistory(caseID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"case_id": caseID,
		"history": history,
	})
}

// Deallocate handles POST /api/v1/allocations/deallocate
// Accepts a single case_id or a case_ids list; bulk requests report per-case
// outcomes with status 200 even when some cases fail.
func (h *AllocationHandler) Deallocate(w http.ResponseWriter, r *http.Request) {
	var req models.DeallocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	actor := middleware.Actor(r.Context())

	if len(req.CaseIDs) > 0 {
		resp := h.service.BulkDeallocate(req.CaseIDs, req.Reason, actor)
		respondWithJSON(w, http.StatusOK, resp)
		return
	}
	if req.CaseID == 0 {
		respondWithError(w, http.StatusBadRequest, "Validation error", "case_id or case_ids is required")
		return
	}
	if err := h.service.Deallocate(req.CaseID, req.Reason, actor); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"case_id": req.CaseID,
		"status":  "deallocated",
	})
}

// ReallocateByAgent handles POST /api/v1/reallocations/by-agent
func (h *AllocationHandler) ReallocateByAgent(w http.ResponseWriter, r *http.Request) {
	var req models.ReallocateByAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	resp, err := h.service.RequestReallocationByAgent(&req, middleware.Actor(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, resp)
}

// ReallocateByFilter handles POST /api/v1/reallocations/by-filter
func (h *AllocationHandler) ReallocateByFilter(w http.ResponseWriter, r *http.Request) {
	var req models.ReallocateByFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	resp, err := h.service.RequestReallocationByFilter(&req, middleware.Actor(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, resp)
}

// GetJob handles GET /api/v1/reallocations/{jobId}
func (h *AllocationHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	if jobID == "" {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid job ID")
		return
	}
	job, err := h.service.GetJob(jobID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}

// GetWorkloads handles GET /api/v1/workload
// Optional query params: agent_id, geography.
func (h *AllocationHandler) GetWorkloads(w http.ResponseWriter, r *http.Request) {
	var agentID *int64
	if v := r.URL.Query().Get("agent_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid agent_id")
			return
		}
		agentID = &id
	}
	geography := r.URL.Query().Get("geography")

	workloads, err := h.service.GetWorkloads(agentID, geography)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"workloads": workloads})
}
