package api

import (
	"net/http"

	"github.com/vytor/chessduel/internal/errors"
)

type createMatchRequest struct {
	PreferredSide string `json:"preferredSide"`
}

type moveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.handleError(w, r, err)
		return
	}

	identity := identityFromContext(r.Context())
	match, err := s.MatchService.CreateMatch(r.Context(), identity.ID, req.PreferredSide)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, match)
}

func (s *Server) handleActiveMatch(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	match, err := s.MatchService.GetActiveMatch(r.Context(), identity.ID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if match == nil {
		s.handleError(w, r, errors.NewNotFoundError("active match", identity.ID))
		return
	}
	writeJSON(w, r, http.StatusOK, match)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	match, err := s.MatchService.GetMatch(r.Context(), matchIDParam(r), identity.ID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, match)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.handleError(w, r, err)
		return
	}

	identity := identityFromContext(r.Context())
	match, err := s.MatchService.ApplyMove(r.Context(), matchIDParam(r), identity.ID, req.From, req.To)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, match)
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	match, err := s.MatchService.Resign(r.Context(), matchIDParam(r), identity.ID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, match)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.LedgerService.Leaderboard(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, board)
}
