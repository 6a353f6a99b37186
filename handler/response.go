package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"caseflow/models"
	"caseflow/repository"
	"caseflow/service"
)

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := models.ErrorResponse{
		Error:   errorType,
		Message: message,
		Code:    statusCode,
	}
	respondWithJSON(w, statusCode, response)
}

// respondWithServiceError maps known domain errors to HTTP statuses
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrCaseNotFound),
		errors.Is(err, repository.ErrAgentNotFound),
		errors.Is(err, repository.ErrRuleNotFound),
		errors.Is(err, repository.ErrBatchNotFound),
		errors.Is(err, repository.ErrJobNotFound),
		errors.Is(err, repository.ErrNotAllocated):
		respondWithError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, repository.ErrConflict):
		respondWithError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, repository.ErrAgentInactive),
		errors.Is(err, service.ErrRuleNotActive):
		respondWithError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrRuleNoCriteria):
		respondWithError(w, http.StatusBadRequest, "Validation error", err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}
