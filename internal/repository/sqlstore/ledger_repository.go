package sqlstore

import (
	"context"

	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
)

type ledgerRepository struct {
	s *Store
}

func (r *ledgerRepository) InsertHistory(ctx context.Context, entry models.HistoryEntry) error {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")

	query, args, err := r.s.db.Builder().Insert("history_entries").
		Columns("match_id", "white_identity_id", "black_identity_id", "winner_identity_id", "status", "created_at", "finished_at").
		Values(entry.MatchID, entry.WhiteIdentityID, entry.BlackIdentityID, entry.WinnerIdentityID,
			string(entry.Status), entry.CreatedAt.UTC(), entry.FinishedAt.UTC()).
		Suffix("ON CONFLICT (match_id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to insert history entry: %v", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn("history entry already recorded: match=%s", entry.MatchID)
		return repository.ErrDuplicate
	}
	log.Debug("history entry recorded: match=%s status=%s", entry.MatchID, entry.Status)
	return nil
}

func (r *ledgerRepository) IncrementStats(ctx context.Context, identityID string, delta models.StatsDelta) error {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")

	query, args, err := r.s.db.Builder().Insert("player_stats").
		Columns("identity_id", "wins", "losses", "draws").
		Values(identityID, delta.Wins, delta.Losses, delta.Draws).
		Suffix(`ON CONFLICT (identity_id) DO UPDATE SET
    wins = player_stats.wins + excluded.wins,
    losses = player_stats.losses + excluded.losses,
    draws = player_stats.draws + excluded.draws`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to increment stats for %s: %v", identityID, err)
		return err
	}
	return nil
}

func (r *ledgerRepository) Stats(ctx context.Context) ([]models.PlayerStats, error) {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")

	query, args, err := r.s.db.Builder().Select("identity_id", "wins", "losses", "draws").
		From("player_stats").OrderBy("identity_id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list stats: %v", err)
		return nil, err
	}
	defer rows.Close()

	var stats []models.PlayerStats
	for rows.Next() {
		var st models.PlayerStats
		if err := rows.Scan(&st.IdentityID, &st.Wins, &st.Losses, &st.Draws); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (r *ledgerRepository) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")

	builder := r.s.db.Builder().
		Select("match_id", "white_identity_id", "black_identity_id", "winner_identity_id", "status", "created_at", "finished_at").
		From("history_entries").
		OrderBy("finished_at DESC", "match_id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list history: %v", err)
		return nil, err
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var (
			e      models.HistoryEntry
			status string
		)
		if err := rows.Scan(&e.MatchID, &e.WhiteIdentityID, &e.BlackIdentityID, &e.WinnerIdentityID, &status, &e.CreatedAt, &e.FinishedAt); err != nil {
			log.Error("failed to scan history row: %v", err)
			return nil, err
		}
		e.Status = models.MatchStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
