package api

import (
	"net/http"
	"strings"

	"github.com/vytor/chessduel/internal/errors"
	"github.com/vytor/chessduel/internal/logger"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type identityResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.handleError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		s.handleError(w, r, errors.NewBadRequestError("username and password are required"))
		return
	}

	identity, err := s.SessionService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	token, err := s.SessionService.Issue(identity)
	if err != nil {
		s.handleError(w, r, errors.NewInternalError(err))
		return
	}

	logger.FromContext(r.Context()).Info("session issued: identity=%s", identity.ID)
	http.SetCookie(w, s.SessionService.Cookie(token))
	writeJSON(w, r, http.StatusOK, identityResponse{ID: identity.ID, DisplayName: identity.DisplayName})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.SessionService.Revoke())
	writeJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	writeJSON(w, r, http.StatusOK, identityResponse{ID: identity.ID, DisplayName: identity.DisplayName})
}
