package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(deadlineMiddleware(s.RequestTimeout))

		r.Post("/session", s.handleLogin)
		r.Delete("/session", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Get("/session", s.handleCurrentSession)
			r.Post("/matches", s.handleCreateMatch)
			r.Get("/matches/active", s.handleActiveMatch)
			r.Get("/matches/{id}", s.handleGetMatch)
			r.Post("/matches/{id}/moves", s.handleMove)
			r.Post("/matches/{id}/resign", s.handleResign)
			r.Get("/matches/{id}/pgn", s.handleExportPGN)
			r.Get("/leaderboard", s.handleLeaderboard)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(deadlineMiddleware(s.RequestTimeout + s.AnalysisTimeout))
		r.Use(s.sessionMiddleware)

		r.Post("/matches/{id}/analysis", s.handleAnalyzeMatch)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, r, errNoRoute)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, r, errMethodNotAllowed)
	})
	return r
}
