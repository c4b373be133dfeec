package services

import (
	"context"
	stderrors "errors"

	"github.com/vytor/chessduel/internal/errors"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
)

// MaxHistoryLimit caps a single history request.
const MaxHistoryLimit = 100

// LedgerService records finished matches and serves cumulative results.
type LedgerService interface {
	// RecordResult writes the history entry and both players' stats for a finished match.
	// It joins the caller's Store transaction when ctx carries one.
	RecordResult(ctx context.Context, match *models.Match) error
	GetStats(ctx context.Context) (map[string]models.PlayerStats, error)
	GetRecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	Leaderboard(ctx context.Context) (*models.Leaderboard, error)
}

type ledgerService struct {
	store        repository.Store
	roster       Roster
	defaultLimit int
}

// NewLedgerService creates a new LedgerService. defaultLimit applies when a history request
// does not name a positive limit.
func NewLedgerService(store repository.Store, roster Roster, defaultLimit int) LedgerService {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	if defaultLimit > MaxHistoryLimit {
		defaultLimit = MaxHistoryLimit
	}
	return &ledgerService{store: store, roster: roster, defaultLimit: defaultLimit}
}

func (s *ledgerService) RecordResult(ctx context.Context, match *models.Match) error {
	log := logger.FromContext(ctx).WithPrefix("ledger_service")

	if !match.Status.Terminal() {
		return errors.NewConflictError("match has not finished", nil)
	}

	finishedAt := match.UpdatedAt
	if match.FinishedAt != nil {
		finishedAt = *match.FinishedAt
	}
	entry := models.HistoryEntry{
		MatchID:          match.ID,
		WhiteIdentityID:  match.WhiteIdentityID,
		BlackIdentityID:  match.BlackIdentityID,
		WinnerIdentityID: match.WinnerIdentityID,
		Status:           match.Status,
		CreatedAt:        match.CreatedAt,
		FinishedAt:       finishedAt,
	}
	white, black := statsDeltas(match.Status)

	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		if err := s.store.Ledger().InsertHistory(ctx, entry); err != nil {
			return err
		}
		if err := s.store.Ledger().IncrementStats(ctx, match.WhiteIdentityID, white); err != nil {
			return err
		}
		return s.store.Ledger().IncrementStats(ctx, match.BlackIdentityID, black)
	})
	switch {
	case err == nil:
		log.Info("result recorded: match=%s status=%s winner=%s", match.ID, match.Status, match.WinnerIdentityID)
		return nil
	case stderrors.Is(err, repository.ErrDuplicate):
		return errors.NewConflictError("result already recorded for this match", err).WithDetail("match_id", match.ID)
	case stderrors.Is(err, repository.ErrConflict):
		return errors.NewConflictError("ledger was updated concurrently, retry", err)
	default:
		log.Error("failed to record result for match %s: %v", match.ID, err)
		return errors.NewInternalError(err)
	}
}

func statsDeltas(status models.MatchStatus) (white, black models.StatsDelta) {
	switch status {
	case models.StatusWhiteWon:
		return models.StatsDelta{Wins: 1}, models.StatsDelta{Losses: 1}
	case models.StatusBlackWon:
		return models.StatsDelta{Losses: 1}, models.StatsDelta{Wins: 1}
	default:
		return models.StatsDelta{Draws: 1}, models.StatsDelta{Draws: 1}
	}
}

func (s *ledgerService) GetStats(ctx context.Context) (map[string]models.PlayerStats, error) {
	stats, err := s.store.Ledger().Stats(ctx)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("ledger_service").Error("failed to load stats: %v", err)
		return nil, errors.NewInternalError(err)
	}

	out := make(map[string]models.PlayerStats, len(stats))
	for _, id := range s.roster.Identities() {
		out[id.ID] = models.PlayerStats{IdentityID: id.ID}
	}
	for _, st := range stats {
		out[st.IdentityID] = st
	}
	return out, nil
}

func (s *ledgerService) GetRecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	history, err := s.store.Ledger().RecentHistory(ctx, limit)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("ledger_service").Error("failed to load history: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (s *ledgerService) Leaderboard(ctx context.Context) (*models.Leaderboard, error) {
	stats, err := s.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.GetRecentHistory(ctx, s.defaultLimit)
	if err != nil {
		return nil, err
	}
	return &models.Leaderboard{Stats: stats, RecentHistory: history}, nil
}
