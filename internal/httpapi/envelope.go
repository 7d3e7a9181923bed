// Package httpapi exposes the LLM settings/usage surface described in
// spec.md §6 ("External interfaces") over plain net/http — no router
// framework, matching the teacher's internal/mcp.Handler idiom of an
// explicit method dispatch returning a typed envelope.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
)

// decodeJSON reads and validates a JSON request body, translating
// decode failures into a client-facing ValidationError.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.ValidationErrorf("invalid request body: %v", err)
	}
	return nil
}

// Envelope is the response shape every endpoint returns.
type Envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	HTTPStatus int    `json:"http_status"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	body.HTTPStatus = status
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if appErr, ok := err.(*apperrors.Error); ok {
		status = statusForType(appErr.Type)
	}
	writeJSON(w, status, Envelope{Success: false, Error: err.Error()})
}

func statusForType(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeFileSystem, apperrors.ErrorTypeInternal:
		return http.StatusInternalServerError
	case apperrors.ErrorTypeQuota:
		return http.StatusTooManyRequests
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
