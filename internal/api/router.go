package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", s.handleListParameters)
			r.Get("/{endpoint}/*", s.handleGetParameter)
			r.Put("/{endpoint}/*", s.handleWriteParameter)
		})

		r.Route("/endpoints", func(r chi.Router) {
			r.Get("/", s.handleListEndpoints)
			r.Get("/{endpoint}", s.handleListEndpointParameters)
		})

		r.Get("/sessions", s.handleSessions)
	})

	// WebSocket event stream
	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

// wsPath returns the configured WebSocket route, defaulting to /ws.
func (s *Server) wsPath() string {
	p := s.wsCfg.Path
	if p == "" {
		return "/ws"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
