package handler

import (
	"net/http"
	"time"

	"caseflow/service"
)

// AnalysisHandler handles HTTP requests for failure analysis
type AnalysisHandler struct {
	service *service.FailureAnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(svc *service.FailureAnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: svc}
}

// AnalyzeBatch handles GET /api/v1/batches/{batchId}/analysis
func (h *AnalysisHandler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathID(r, "batchId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid batch ID")
		return
	}
	analysis, err := h.service.AnalyzeBatch(batchID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, analysis)
}

// Summary handles GET /api/v1/analysis/summary?from=YYYY-MM-DD&to=YYYY-MM-DD
// Defaults to the trailing 7 days when no range is given.
func (h *AnalysisHandler) Summary(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid from date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid to date, expected YYYY-MM-DD")
			return
		}
		// Inclusive end of day.
		to = parsed.Add(24*time.Hour - time.Second)
	}
	if to.Before(from) {
		respondWithError(w, http.StatusBadRequest, "Validation error", "to must not be before from")
		return
	}

	summary, err := h.service.Summary(from, to)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
