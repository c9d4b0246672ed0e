package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/pkg/logger"
)

// errorBody 오류 응답 형식
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondDomainError maps domain errors to HTTP status codes
// ValidationError → 400, NotFoundError → 404, 나머지 → 500 (내부 메시지 숨김)
func respondDomainError(w http.ResponseWriter, log *logger.Logger, err error, msg string) {
	var ve *contracts.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, contracts.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		log.WithError(err).Error(msg)
		respondError(w, http.StatusInternalServerError, msg)
	}
}

// decodeJSON reads the request body into v; unknown fields are rejected
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return contracts.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}
