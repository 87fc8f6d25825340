package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check and metrics (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Panic (no auth required)
		r.Post("/panic", s.handlePanic)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/valves", func(r chi.Router) {
				r.Get("/", s.handleListValves)
				r.Put("/{name}", s.handleSetValve)
				r.Post("/{name}/toggle", s.handleToggleValve)
			})

			r.Route("/sequence", func(r chi.Router) {
				r.Get("/", s.handleGetSequence)
				r.Put("/steps", s.handleSetSteps)
				r.Post("/send", s.handleSendSequence)
				r.Post("/run", s.handleRunSequence)
				r.Post("/stop", s.handleStopSequence)
				r.Post("/advance", s.handleAdvanceSequence)
			})

			r.Get("/profiles/{kind}", s.handleGetProfile)

			r.Route("/recording", func(r chi.Router) {
				r.Get("/", s.handleGetRecording)
				r.Post("/start", s.handleStartRecording)
				r.Post("/stop", s.handleStopRecording)
			})

			r.Route("/library", func(r chi.Router) {
				r.Get("/", s.handleListLibrary)
				r.Post("/", s.handleCreateLibrary)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetLibrary)
					r.Put("/", s.handleUpdateLibrary)
					r.Delete("/", s.handleDeleteLibrary)
					r.Post("/load", s.handleLoadLibrary)
				})
			})

			r.Route("/runs", func(r chi.Router) {
				r.Get("/", s.handleListRuns)
				r.Get("/{id}", s.handleGetRun)
			})

			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"bench":   s.benchID,
		"version": s.version,
	})
}
