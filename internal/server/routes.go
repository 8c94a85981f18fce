package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Session routes require an owner identity.
	r.Route("/session", func(r chi.Router) {
		r.Use(s.requireOwner)

		r.Get("/", s.listSessions)
		r.Post("/message", s.newMessage)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/continue", s.continueSession)
		})
	})

	// System ping, authenticated by shared secret.
	r.Post("/ping", s.ping)

	// Event streaming (SSE)
	r.Get("/event", s.events)

	// Liveness
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
