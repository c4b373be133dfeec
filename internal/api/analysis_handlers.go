package api

import (
	"fmt"
	"net/http"

	"github.com/vytor/chessduel/internal/logger"
)

const pgnContentType = "application/x-chess-pgn"

func (s *Server) handleExportPGN(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	id := matchIDParam(r)

	text, err := s.AnalysisService.ExportPGN(r.Context(), id, identity.ID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", pgnContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "match-"+id+".pgn"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		logger.FromContext(r.Context()).Error("failed to write pgn: %v", err)
	}
}

func (s *Server) handleAnalyzeMatch(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	report, err := s.AnalysisService.AnalyzeMatch(r.Context(), matchIDParam(r), identity.ID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}
