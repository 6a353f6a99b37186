package handler

import (
	"fmt"
	"log"
	"net/http"

	"caseflow/middleware"
	"caseflow/models"
	"caseflow/service"
)

// maxUploadBytes caps upload size at 20MB
const maxUploadBytes = 20 << 20

// BatchHandler handles HTTP requests for batch uploads
type BatchHandler struct {
	service *service.BatchService
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.BatchService) *BatchHandler {
	return &BatchHandler{service: svc}
}

// Upload handles POST /api/v1/batches?type={allocation|reallocation|contact_update}
// Accepts a multipart "file" part. The upload is registered and processed
// asynchronously; poll the returned batch id for progress.
func (h *BatchHandler) Upload(w http.ResponseWriter, r *http.Request) {
	batchType := models.BatchType(r.URL.Query().Get("type"))
	if batchType == "" {
		batchType = models.BatchTypeAllocation
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Expected multipart form with a file part")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Missing file part")
		return
	}
	defer file.Close()

	batch, err := h.service.CreateUpload(file, header.Filename, batchType, middleware.Actor(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, batchStatus(batch))
}

// GetBatch handles GET /api/v1/batches/{batchId}
func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathID(r, "batchId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid batch ID")
		return
	}
	batch, err := h.service.GetBatch(batchID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, batchStatus(batch))
}

// GetErrors handles GET /api/v1/batches/{batchId}/errors
func (h *BatchHandler) GetErrors(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathID(r, "batchId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid batch ID")
		return
	}
	if _, err := h.service.GetBatch(batchID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	batchErrors, err := h.service.GetErrors(batchID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id": batchID,
		"errors":   batchErrors,
	})
}

// ExportErrors handles GET /api/v1/batches/{batchId}/errors/export
func (h *BatchHandler) ExportErrors(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathID(r, "batchId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid batch ID")
		return
	}
	if _, err := h.service.GetBatch(batchID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="batch-%d-errors.csv"`, batchID))
	if err := h.service.ExportErrors(batchID, w); err != nil {
		log.Printf("[BATCH] Error export for batch %d failed mid-stream: %v", batchID, err)
	}
}

// ExportBatch handles GET /api/v1/batches/{batchId}/export
func (h *BatchHandler) ExportBatch(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathID(r, "batchId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Invalid batch ID")
		return
	}
	if _, err := h.service.GetBatch(batchID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="batch-%d.csv"`, batchID))
	if err := h.service.ExportBatch(batchID, w); err != nil {
		log.Printf("[BATCH] Export for batch %d failed mid-stream: %v", batchID, err)
	}
}

func batchStatus(batch *models.AllocationBatch) *models.BatchStatusResponse {
	return &models.BatchStatusResponse{
		BatchID:     batch.BatchID,
		BatchNumber: batch.BatchNumber,
		BatchType:   batch.BatchType,
		TotalCases:  batch.TotalCases,
		Successful:  batch.SuccessfulAllocations,
		Failed:      batch.FailedAllocations,
		Status:      batch.Status,
		UploadedBy:  batch.UploadedBy,
		CreatedAt:   batch.CreatedAt,
	}
}
