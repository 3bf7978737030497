package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"travel-diary-backend/internal/apperr"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondAppError maps an error category to its status. Messages of
// validation and not-found errors are shown to the client; everything else
// gets a fixed message.
func respondAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrUnauthorized):
		respondError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperr.ErrGeneration):
		respondError(w, apperr.ErrGeneration.Error(), http.StatusBadGateway)
	case errors.Is(err, apperr.ErrPersistence):
		respondError(w, apperr.ErrPersistence.Error(), http.StatusInternalServerError)
	default:
		log.Error().Err(err).Msg("Unhandled error")
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}
