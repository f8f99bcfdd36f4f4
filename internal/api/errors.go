package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/parambridge-core/internal/odin"
	"github.com/nerrad567/parambridge-core/internal/param"
	"github.com/nerrad567/parambridge-core/internal/sync"
)

// Error is the JSON error envelope returned by every failing request.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned in the error envelope.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidWrite  = "invalid_write"
	ErrCodeWriteConflict = "write_in_flight"
	ErrCodeWriteTimeout  = "write_timeout"
	ErrCodeSessionClosed = "session_closed"
	ErrCodeUpstream      = "upstream_error"
	ErrCodeInternal      = "internal_error"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response write errors are not actionable here
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps bridge errors onto HTTP status codes. Anything not
// recognised is reported as an internal error without leaking the detail.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, param.ErrParameterNotFound),
		errors.Is(err, param.ErrEndpointNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, param.ErrWriteInFlight):
		writeError(w, http.StatusConflict, ErrCodeWriteConflict, err.Error())
	case errors.Is(err, sync.ErrInvalidWrite):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeInvalidWrite, err.Error())
	case errors.Is(err, sync.ErrWriteTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeWriteTimeout, err.Error())
	case errors.Is(err, sync.ErrSessionClosed):
		writeError(w, http.StatusConflict, ErrCodeSessionClosed, err.Error())
	case errors.Is(err, odin.ErrTransport):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
