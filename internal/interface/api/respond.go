package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// ErrorResponse is the error shape of every API failure
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	resp := ErrorResponse{}
	resp.Error.Code = code
	resp.Error.Message = message
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, resp)
}

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrInvalidInput), errors.Is(err, entity.ErrInvalidMessage):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, entity.ErrDuplicateUser),
		errors.Is(err, entity.ErrDuplicateFlight),
		errors.Is(err, entity.ErrDuplicateSchedule):
		return http.StatusConflict, "conflict"
	case errors.Is(err, entity.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, entity.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, entity.ErrSelectionFailure):
		return http.StatusServiceUnavailable, "selection_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
