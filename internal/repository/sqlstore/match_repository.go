package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
)

var matchColumns = []string{
	"id", "white_identity_id", "black_identity_id", "position", "side_to_move", "status",
	"winner_identity_id", "version", "created_at", "updated_at", "finished_at",
}

type matchRepository struct {
	s *Store
}

func (r *matchRepository) Create(ctx context.Context, match *models.Match) error {
	log := logger.FromContext(ctx).WithPrefix("match_repo")
	log.Debug("creating match: id=%s white=%s black=%s", match.ID, match.WhiteIdentityID, match.BlackIdentityID)

	query, args, err := r.s.db.Builder().Insert("matches").Columns(matchColumns...).Values(
		match.ID, match.WhiteIdentityID, match.BlackIdentityID, match.Position, string(match.SideToMove),
		string(match.Status), match.WinnerIdentityID, match.Version, match.CreatedAt.UTC(),
		match.UpdatedAt.UTC(), finishedAt(match.FinishedAt),
	).ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return err
	}

	if _, err := r.s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			log.Debug("match insert rejected, another match is ongoing")
			return repository.ErrConflict
		}
		log.Error("failed to insert match: %v", err)
		return err
	}
	return nil
}

func (r *matchRepository) Get(ctx context.Context, id string) (*models.Match, error) {
	log := logger.FromContext(ctx).WithPrefix("match_repo")

	query, args, err := r.s.db.Builder().Select(matchColumns...).From("matches").
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	m, err := scanMatch(r.s.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("match not found: id=%s", id)
		return nil, repository.ErrNotFound
	}
	if err != nil {
		log.Error("failed to get match: %v", err)
		return nil, err
	}
	return m, nil
}

func (r *matchRepository) Ongoing(ctx context.Context) (*models.Match, error) {
	log := logger.FromContext(ctx).WithPrefix("match_repo")

	query, args, err := r.s.db.Builder().Select(matchColumns...).From("matches").
		Where(squirrel.Eq{"status": string(models.StatusOngoing)}).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	m, err := scanMatch(r.s.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get ongoing match: %v", err)
		return nil, err
	}
	return m, nil
}

func (r *matchRepository) UpdateIfVersion(ctx context.Context, match *models.Match, expected int64) error {
	log := logger.FromContext(ctx).WithPrefix("match_repo")
	log.Debug("updating match: id=%s expected_version=%d status=%s", match.ID, expected, match.Status)

	query, args, err := r.s.db.Builder().Update("matches").
		Set("position", match.Position).
		Set("side_to_move", string(match.SideToMove)).
		Set("status", string(match.Status)).
		Set("winner_identity_id", match.WinnerIdentityID).
		Set("version", expected+1).
		Set("updated_at", match.UpdatedAt.UTC()).
		Set("finished_at", finishedAt(match.FinishedAt)).
		Where(squirrel.Eq{"id": match.ID, "version": expected}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		if isSerializationFailure(err) {
			return repository.ErrConflict
		}
		log.Error("failed to update match: %v", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.Get(ctx, match.ID); err != nil {
			return err
		}
		log.Debug("stale write rejected: id=%s expected_version=%d", match.ID, expected)
		return repository.ErrConflict
	}
	match.Version = expected + 1
	return nil
}

// AppendMove assigns max(sequence_number)+1 for the match. A concurrent append that computes
// the same number hits the primary key and reports a conflict.
func (r *matchRepository) AppendMove(ctx context.Context, move *models.MoveRecord) error {
	log := logger.FromContext(ctx).WithPrefix("match_repo")
	conn := r.s.conn(ctx)

	query, args, err := r.s.db.Builder().Select("COALESCE(MAX(sequence_number), 0) + 1").
		From("move_records").Where(squirrel.Eq{"match_id": move.MatchID}).ToSql()
	if err != nil {
		return err
	}
	var next int64
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&next); err != nil {
		log.Error("failed to read move sequence: %v", err)
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args, err = r.s.db.Builder().Insert("move_records").
		Columns("match_id", "sequence_number", "notation", "from_square", "to_square", "promotion", "recorded_at").
		Values(move.MatchID, next, move.Notation, move.FromSquare, move.ToSquare, move.Promotion, move.RecordedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) || isSerializationFailure(err) {
			return repository.ErrConflict
		}
		log.Error("failed to append move: %v", err)
		return fmt.Errorf("append move: %w", err)
	}
	move.SequenceNumber = next
	log.Debug("move appended: match=%s seq=%d %s", move.MatchID, move.SequenceNumber, move.UCI())
	return nil
}

func (r *matchRepository) Moves(ctx context.Context, matchID string) ([]models.MoveRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("match_repo")

	query, args, err := r.s.db.Builder().
		Select("match_id", "sequence_number", "notation", "from_square", "to_square", "promotion", "recorded_at").
		From("move_records").
		Where(squirrel.Eq{"match_id": matchID}).
		OrderBy("sequence_number ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list moves: %v", err)
		return nil, err
	}
	defer rows.Close()

	moves := []models.MoveRecord{}
	for rows.Next() {
		var mv models.MoveRecord
		if err := rows.Scan(&mv.MatchID, &mv.SequenceNumber, &mv.Notation, &mv.FromSquare, &mv.ToSquare, &mv.Promotion, &mv.RecordedAt); err != nil {
			log.Error("failed to scan move row: %v", err)
			return nil, err
		}
		moves = append(moves, mv)
	}
	return moves, rows.Err()
}

func scanMatch(row *sql.Row) (*models.Match, error) {
	var (
		m        models.Match
		side     string
		status   string
		finished sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.WhiteIdentityID, &m.BlackIdentityID, &m.Position, &side, &status,
		&m.WinnerIdentityID, &m.Version, &m.CreatedAt, &m.UpdatedAt, &finished); err != nil {
		return nil, err
	}
	m.SideToMove = models.Side(side)
	m.Status = models.MatchStatus(status)
	if finished.Valid {
		t := finished.Time
		m.FinishedAt = &t
	}
	return &m, nil
}

func finishedAt(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
