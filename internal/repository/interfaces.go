package repository

import (
	"context"

	"github.com/vytor/chessduel/internal/models"
)

// MatchRepository handles match and move-log data access.
type MatchRepository interface {
	// Create inserts a new ongoing match. It returns ErrConflict when another ongoing match exists.
	Create(ctx context.Context, match *models.Match) error
	// Get returns the match without its move log, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Match, error)
	// Ongoing returns the single ongoing match, or nil when there is none.
	Ongoing(ctx context.Context) (*models.Match, error)
	// UpdateIfVersion writes match only if the stored version equals expected. On success
	// match.Version is set to expected+1; a stale write returns ErrConflict.
	UpdateIfVersion(ctx context.Context, match *models.Match, expected int64) error
	// AppendMove stores a move record, assigning the next sequence number for its match.
	AppendMove(ctx context.Context, move *models.MoveRecord) error
	// Moves returns the match's move log ordered by sequence number.
	Moves(ctx context.Context, matchID string) ([]models.MoveRecord, error)
}

// LedgerRepository handles finished-match history and player statistics.
type LedgerRepository interface {
	// InsertHistory appends a history entry. A repeated match id returns ErrDuplicate.
	InsertHistory(ctx context.Context, entry models.HistoryEntry) error
	// IncrementStats adds delta to the identity's row, creating it at zero first if absent.
	IncrementStats(ctx context.Context, identityID string, delta models.StatsDelta) error
	Stats(ctx context.Context) ([]models.PlayerStats, error)
	// RecentHistory returns up to limit entries, most recently finished first.
	RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error)
}

// Store groups the repositories behind one transactional boundary.
type Store interface {
	Matches() MatchRepository
	Ledger() LedgerRepository
	// Atomic runs fn so that every repository call made with the ctx passed to fn commits
	// together or not at all. Nested calls join the enclosing transaction.
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
	Close() error
}
