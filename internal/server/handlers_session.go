package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/relay-ai/relay/internal/session"
	"github.com/relay-ai/relay/internal/store"
	"github.com/relay-ai/relay/pkg/types"
)

// newMessageRequest is the body of POST /session/message.
type newMessageRequest struct {
	Content    string `json:"content"`
	SessionID  string `json:"sessionID,omitempty"`
	ProviderID string `json:"providerID,omitempty"`
	ModelID    string `json:"modelID,omitempty"`
	MaxTurns   int    `json:"maxTurns,omitempty"`
}

// newMessage handles POST /session/message. The X-Request-ID header is the
// idempotency key: retries with the same ID replay the original outcome.
func (s *Server) newMessage(w http.ResponseWriter, r *http.Request) {
	var req newMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
		return
	}

	resp, err := s.service.ProcessNewMessage(r.Context(), session.NewMessageInput{
		Owner:      ownerFrom(r.Context()),
		Content:    req.Content,
		SessionID:  req.SessionID,
		ProviderID: req.ProviderID,
		ModelID:    req.ModelID,
		MaxTurns:   req.MaxTurns,
		RequestID:  r.Header.Get("X-Request-ID"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if resp.Pending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

// continueSession handles POST /session/{sessionID}/continue.
func (s *Server) continueSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	resp, err := s.service.ProcessContinue(r.Context(), sessionID, ownerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// listSessions handles GET /session.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Source: types.SessionSource(q.Get("source")),
		Status: types.SessionStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	sessions, err := s.service.List(r.Context(), ownerFrom(r.Context()), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// sessionDetail is the body of GET /session/{sessionID}.
type sessionDetail struct {
	Session  *types.Session  `json:"session"`
	Messages []types.Message `json:"messages"`
}

// getSession handles GET /session/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, messages, err := s.service.Get(r.Context(), sessionID, ownerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if messages == nil {
		messages = []types.Message{}
	}
	writeJSON(w, http.StatusOK, sessionDetail{Session: sess, Messages: messages})
}

// deleteSession handles DELETE /session/{sessionID}.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.service.Delete(r.Context(), sessionID, ownerFrom(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w)
}
