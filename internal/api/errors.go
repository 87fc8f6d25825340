package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/flowbench-core/internal/profile"
	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/telemetry"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeBadGateway     = "controller_unavailable"
	ErrCodeNotImplemented = "not_configured"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 for a route whose backing component is not configured.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeNotImplemented, message)
}

// writeDomainError maps an error from the domain packages to a response.
// Unrecognised errors are logged and reported as 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sequence.ErrNotSent),
		errors.Is(err, sequence.ErrSequenceBusy),
		errors.Is(err, sequence.ErrSuperseded),
		errors.Is(err, sequence.ErrNotRunning),
		errors.Is(err, sequence.ErrSequenceExists),
		errors.Is(err, telemetry.ErrAlreadyRecording):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, sequence.ErrSinkUnavailable):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	case errors.Is(err, sequence.ErrSequenceNotFound),
		errors.Is(err, sequence.ErrRunNotFound):
		writeNotFound(w, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}

// isValidationError reports whether err was caused by bad client input.
func isValidationError(err error) bool {
	for _, target := range []error{
		sequence.ErrNoSteps,
		sequence.ErrEmptyPlan,
		sequence.ErrInvalidDuration,
		sequence.ErrInvalidName,
		valve.ErrUnknownValve,
		valve.ErrInvalidAction,
		profile.ErrUnknownProfile,
		profile.ErrInvalidResolution,
		profile.ErrInvalidOptions,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
