package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/chessduel/internal/errors"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
	"github.com/vytor/chessduel/internal/rules"
)

// MatchService owns the single ongoing match: creation, turn checks and move application.
type MatchService interface {
	CreateMatch(ctx context.Context, requesterID string, preferredSide string) (*models.Match, error)
	// GetActiveMatch returns the ongoing match the identity plays in, or nil.
	GetActiveMatch(ctx context.Context, identityID string) (*models.Match, error)
	GetMatch(ctx context.Context, matchID, requesterID string) (*models.Match, error)
	ApplyMove(ctx context.Context, matchID, requesterID, from, to string) (*models.Match, error)
	Resign(ctx context.Context, matchID, requesterID string) (*models.Match, error)
}

type matchService struct {
	store  repository.Store
	engine rules.Engine
	roster Roster
	ledger LedgerService
	now    func() time.Time
	newID  func() string
}

// NewMatchService creates a new MatchService
func NewMatchService(store repository.Store, engine rules.Engine, roster Roster, ledger LedgerService) MatchService {
	return &matchService{
		store:  store,
		engine: engine,
		roster: roster,
		ledger: ledger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *matchService) CreateMatch(ctx context.Context, requesterID string, preferredSide string) (*models.Match, error) {
	log := logger.FromContext(ctx).WithPrefix("match_service")
	log.Debug("creating match: requester=%s preferred_side=%q", requesterID, preferredSide)

	if _, ok := s.roster.Lookup(requesterID); !ok {
		return nil, errors.NewUnauthorizedError(ErrInvalidSession)
	}
	opponent, err := s.roster.Opponent(requesterID)
	if err != nil {
		log.Error("no opponent for %s: %v", requesterID, err)
		return nil, errors.NewInternalError(err)
	}

	existing, err := s.store.Matches().Ongoing(ctx)
	if err != nil {
		log.Error("failed to check ongoing match: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if existing != nil {
		return nil, ongoingConflict(existing.ID, nil)
	}

	now := s.now().UTC()
	match := &models.Match{
		ID:         s.newID(),
		Position:   s.engine.StartingPosition(),
		SideToMove: models.White,
		Status:     models.StatusOngoing,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		Moves:      []models.MoveRecord{},
	}
	if models.ParseSide(preferredSide) == models.White {
		match.WhiteIdentityID, match.BlackIdentityID = requesterID, opponent.ID
	} else {
		match.WhiteIdentityID, match.BlackIdentityID = opponent.ID, requesterID
	}

	err = s.store.Atomic(ctx, func(ctx context.Context) error {
		return s.store.Matches().Create(ctx, match)
	})
	if stderrors.Is(err, repository.ErrConflict) {
		// lost the race to another create
		current, lookupErr := s.store.Matches().Ongoing(ctx)
		if lookupErr == nil && current != nil {
			return nil, ongoingConflict(current.ID, err)
		}
		return nil, errors.NewConflictError("an ongoing match already exists", err)
	}
	if err != nil {
		log.Error("failed to create match: %v", err)
		return nil, errors.NewInternalError(err)
	}

	log.Info("match created: id=%s white=%s black=%s", match.ID, match.WhiteIdentityID, match.BlackIdentityID)
	return match, nil
}

func ongoingConflict(matchID string, err error) *errors.AppError {
	return errors.NewConflictError("an ongoing match already exists", err).WithDetail("match_id", matchID)
}

func (s *matchService) GetActiveMatch(ctx context.Context, identityID string) (*models.Match, error) {
	log := logger.FromContext(ctx).WithPrefix("match_service")

	match, err := s.store.Matches().Ongoing(ctx)
	if err != nil {
		log.Error("failed to get ongoing match: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if match == nil || !match.IsParticipant(identityID) {
		return nil, nil
	}
	if err := s.loadMoves(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID, requesterID string) (*models.Match, error) {
	match, err := s.load(ctx, matchID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.loadMoves(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) ApplyMove(ctx context.Context, matchID, requesterID, from, to string) (*models.Match, error) {
	log := logger.FromContext(ctx).WithPrefix("match_service").WithField("match_id", matchID)

	from, to = rules.NormalizeSquare(from), rules.NormalizeSquare(to)
	if !rules.ValidSquare(from) {
		return nil, errors.NewValidationError("from", "must be a board square such as e2")
	}
	if !rules.ValidSquare(to) {
		return nil, errors.NewValidationError("to", "must be a board square such as e4")
	}

	match, err := s.load(ctx, matchID, requesterID)
	if err != nil {
		return nil, err
	}
	if match.Status.Terminal() {
		return nil, errors.NewStateError(string(match.Status))
	}

	// the match row and its move log are separate reads; a move committed between them
	// shows up as one more move than the row's version accounts for
	if err := s.loadMoves(ctx, match); err != nil {
		return nil, err
	}
	if int64(len(match.Moves)) != match.Version-1 {
		return nil, s.staleRead(ctx, match, fmt.Errorf("%d moves recorded at version %d", len(match.Moves), match.Version))
	}

	// turn ownership comes from the stored position, never from the client
	toMove, err := s.engine.SideToMove(match.Position)
	if err != nil {
		log.Error("stored position is unreadable: %v", err)
		return nil, errors.NewInternalError(err)
	}
	mover := match.SideOf(requesterID)
	if mover != toMove {
		log.Debug("move out of turn: requester=%s side=%s to_move=%s", requesterID, mover, toMove)
		return nil, errors.NewTurnError()
	}

	result, err := s.engine.Apply(rules.State{FEN: match.Position, History: match.MoveHistory()}, from, to)
	if err != nil {
		if stderrors.Is(err, rules.ErrIllegalMove) {
			log.Debug("illegal move %s%s: %v", from, to, err)
			return nil, errors.NewIllegalMoveError(from, to, err)
		}
		if stderrors.Is(err, rules.ErrStateMismatch) {
			return nil, s.staleRead(ctx, match, err)
		}
		log.Error("rules engine failed: %v", err)
		return nil, errors.NewInternalError(err)
	}

	now := s.now().UTC()
	updated := *match
	updated.Position = result.Position
	updated.SideToMove = result.SideToMove
	updated.UpdatedAt = now
	status, winner := rules.WinnerFromTerminalState(mover, result.Terminal)
	if status.Terminal() {
		finish(&updated, status, winner, now)
	}

	record := models.MoveRecord{
		MatchID:    match.ID,
		Notation:   result.Notation,
		FromSquare: from,
		ToSquare:   to,
		Promotion:  result.Promotion,
		RecordedAt: now,
	}

	err = s.store.Atomic(ctx, func(ctx context.Context) error {
		if err := s.store.Matches().UpdateIfVersion(ctx, &updated, match.Version); err != nil {
			return err
		}
		if err := s.store.Matches().AppendMove(ctx, &record); err != nil {
			return err
		}
		if updated.Status.Terminal() {
			return s.ledger.RecordResult(ctx, &updated)
		}
		return nil
	})
	if err != nil {
		return nil, s.transitionError(ctx, match.ID, err)
	}

	updated.Moves = append(match.Moves, record)
	log.Info("move applied: seq=%d %s (%s) status=%s", record.SequenceNumber, result.UCI, record.Notation, updated.Status)
	return &updated, nil
}

func (s *matchService) Resign(ctx context.Context, matchID, requesterID string) (*models.Match, error) {
	log := logger.FromContext(ctx).WithPrefix("match_service").WithField("match_id", matchID)

	match, err := s.load(ctx, matchID, requesterID)
	if err != nil {
		return nil, err
	}
	if match.Status.Terminal() {
		return nil, errors.NewStateError(string(match.Status))
	}

	now := s.now().UTC()
	updated := *match
	updated.UpdatedAt = now
	status, winner := rules.WinnerFromResignation(match.SideOf(requesterID))
	finish(&updated, status, winner, now)

	err = s.store.Atomic(ctx, func(ctx context.Context) error {
		if err := s.store.Matches().UpdateIfVersion(ctx, &updated, match.Version); err != nil {
			return err
		}
		return s.ledger.RecordResult(ctx, &updated)
	})
	if err != nil {
		return nil, s.transitionError(ctx, match.ID, err)
	}

	if err := s.loadMoves(ctx, &updated); err != nil {
		return nil, err
	}
	log.Info("match resigned: by=%s status=%s", requesterID, updated.Status)
	return &updated, nil
}

// load fetches a match and checks that requesterID plays in it.
func (s *matchService) load(ctx context.Context, matchID, requesterID string) (*models.Match, error) {
	match, err := s.store.Matches().Get(ctx, matchID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NewNotFoundError("match", matchID)
	}
	if err != nil {
		logger.FromContext(ctx).WithPrefix("match_service").Error("failed to get match %s: %v", matchID, err)
		return nil, errors.NewInternalError(err)
	}
	if !match.IsParticipant(requesterID) {
		return nil, errors.NewForbiddenError("not a participant in this match")
	}
	return match, nil
}

func (s *matchService) loadMoves(ctx context.Context, match *models.Match) error {
	moves, err := s.store.Matches().Moves(ctx, match.ID)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("match_service").Error("failed to load moves for %s: %v", match.ID, err)
		return errors.NewInternalError(err)
	}
	match.Moves = moves
	return nil
}

// staleRead decides whether an inconsistent read of match came from a concurrent write.
// A version that moved on since the read is a conflict; anything else is a corrupt record.
func (s *matchService) staleRead(ctx context.Context, match *models.Match, cause error) error {
	log := logger.FromContext(ctx).WithPrefix("match_service").WithField("match_id", match.ID)

	current, err := s.store.Matches().Get(ctx, match.ID)
	if err != nil {
		log.Error("failed to re-read match: %v", err)
		return errors.NewInternalError(err)
	}
	if current.Version != match.Version {
		log.Debug("stale read: read version=%d current=%d: %v", match.Version, current.Version, cause)
		return errors.NewConflictError("match was updated concurrently, reload and retry", repository.ErrConflict).
			WithDetail("match_id", match.ID)
	}
	log.Error("match record is inconsistent at version %d: %v", match.Version, cause)
	return errors.NewInternalError(cause)
}

// transitionError maps a failed state-transition transaction. Nothing was committed.
func (s *matchService) transitionError(ctx context.Context, matchID string, err error) error {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}
	switch {
	case stderrors.Is(err, repository.ErrConflict):
		return errors.NewConflictError("match was updated concurrently, reload and retry", err).WithDetail("match_id", matchID)
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NewNotFoundError("match", matchID)
	default:
		logger.FromContext(ctx).WithPrefix("match_service").Error("transition failed for %s: %v", matchID, err)
		return errors.NewInternalError(err)
	}
}

func finish(m *models.Match, status models.MatchStatus, winner models.Side, at time.Time) {
	m.Status = status
	m.WinnerIdentityID = ""
	if winner != "" {
		m.WinnerIdentityID = m.IdentityFor(winner)
	}
	m.FinishedAt = &at
}
