package services

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/vytor/chessduel/internal/analysis"
	"github.com/vytor/chessduel/internal/errors"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/pgn"
)

const analysisServiceName = "analysis service"

// AnalysisService exports matches as PGN and forwards them for external analysis.
type AnalysisService interface {
	ExportPGN(ctx context.Context, matchID, requesterID string) (string, error)
	AnalyzeMatch(ctx context.Context, matchID, requesterID string) (*analysis.Report, error)
}

type analysisService struct {
	matches  MatchService
	roster   Roster
	analyzer analysis.Analyzer
}

// NewAnalysisService creates a new AnalysisService. A nil analyzer leaves export working
// and makes AnalyzeMatch report the service as unavailable.
func NewAnalysisService(matches MatchService, roster Roster, analyzer analysis.Analyzer) AnalysisService {
	return &analysisService{matches: matches, roster: roster, analyzer: analyzer}
}

func (s *analysisService) ExportPGN(ctx context.Context, matchID, requesterID string) (string, error) {
	match, err := s.matches.GetMatch(ctx, matchID, requesterID)
	if err != nil {
		return "", err
	}
	white, _ := s.roster.Lookup(match.WhiteIdentityID)
	black, _ := s.roster.Lookup(match.BlackIdentityID)
	return pgn.Encode(match, white.DisplayName, black.DisplayName), nil
}

func (s *analysisService) AnalyzeMatch(ctx context.Context, matchID, requesterID string) (*analysis.Report, error) {
	log := logger.FromContext(ctx).WithPrefix("analysis_service").WithField("match_id", matchID)

	if s.analyzer == nil {
		return nil, errors.NewUpstreamError(analysisServiceName, http.StatusServiceUnavailable, nil).
			WithDetail("reason", "not configured")
	}

	pgnText, err := s.ExportPGN(ctx, matchID, requesterID)
	if err != nil {
		return nil, err
	}

	report, err := s.analyzer.Analyze(ctx, analysis.NewRequest(matchID, pgnText))
	if err != nil {
		var statusErr *analysis.StatusError
		if stderrors.As(err, &statusErr) {
			log.Warn("analysis service answered %d", statusErr.StatusCode)
			return nil, errors.NewUpstreamError(analysisServiceName, http.StatusBadGateway, err).
				WithDetail("upstream_status", statusErr.StatusCode)
		}
		log.Warn("analysis failed: %v", err)
		return nil, errors.NewUpstreamError(analysisServiceName, http.StatusBadGateway, err)
	}
	return report, nil
}
