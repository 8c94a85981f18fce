package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/relay-ai/relay/internal/session"
)

// pingRequest is the body of POST /ping.
type pingRequest struct {
	Content    string `json:"content"`
	ProviderID string `json:"providerID,omitempty"`
	ModelID    string `json:"modelID,omitempty"`
}

// ping handles POST /ping. Authenticated by the shared ping secret; the
// session runs to completion under the system owner.
func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	if !s.pingAuthorized(r) {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or missing bearer token")
		return
	}

	var req pingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
		return
	}

	resp, err := s.service.ProcessPing(r.Context(), session.PingInput{
		Content:    req.Content,
		ProviderID: req.ProviderID,
		ModelID:    req.ModelID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) pingAuthorized(r *http.Request) bool {
	secret := s.appConfig.PingSecret
	if secret == "" {
		return false
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
