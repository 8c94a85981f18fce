package server

import (
	"encoding/json"
	"net/http"

	"github.com/relay-ai/relay/internal/session"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeUnauthorized   = "unauthorized"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeServiceError maps an orchestrator error onto the HTTP surface. The
// error kind doubles as the wire code.
func writeServiceError(w http.ResponseWriter, err error) {
	kind := session.KindOf(err)
	writeError(w, statusForKind(kind), string(kind), err.Error())
}

func statusForKind(kind session.Kind) int {
	switch kind {
	case session.KindNotFound:
		return http.StatusNotFound
	case session.KindAccessDenied:
		return http.StatusForbidden
	case session.KindConfigurationMissing:
		return http.StatusUnprocessableEntity
	case session.KindProviderFailure, session.KindToolFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
