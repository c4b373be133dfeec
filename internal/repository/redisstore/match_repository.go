package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
)

type matchRepository struct {
	s *Store
}

func (r *matchRepository) Create(ctx context.Context, match *models.Match) error {
	log := logger.FromContext(ctx).WithPrefix("match_repo")
	log.Debug("creating match: id=%s white=%s black=%s", match.ID, match.WhiteIdentityID, match.BlackIdentityID)

	return r.s.write(ctx, func(ctx context.Context, t *txn) error {
		current, err := r.Ongoing(ctx)
		if err != nil {
			return err
		}
		if current != nil {
			log.Debug("match insert rejected, %s is ongoing", current.ID)
			return repository.ErrConflict
		}
		if err := t.tx.Watch(ctx, r.s.matchKey(match.ID)).Err(); err != nil {
			return err
		}
		exists, err := t.tx.Exists(ctx, r.s.matchKey(match.ID)).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return repository.ErrConflict
		}

		raw, err := encodeMatch(match)
		if err != nil {
			return err
		}
		t.pipe.Set(ctx, r.s.matchKey(match.ID), raw, 0)
		t.pipe.Set(ctx, r.s.ongoingKey(), match.ID, 0)
		return nil
	})
}

func (r *matchRepository) Get(ctx context.Context, id string) (*models.Match, error) {
	rd, err := r.s.reader(ctx, r.s.matchKey(id))
	if err != nil {
		return nil, err
	}
	raw, err := rd.Get(ctx, r.s.matchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		logger.FromContext(ctx).WithPrefix("match_repo").Error("failed to get match %s: %v", id, err)
		return nil, err
	}
	var m models.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	return &m, nil
}

// Ongoing follows the pointer key. A pointer to a finished match is treated as empty.
func (r *matchRepository) Ongoing(ctx context.Context) (*models.Match, error) {
	rd, err := r.s.reader(ctx, r.s.ongoingKey())
	if err != nil {
		return nil, err
	}
	id, err := rd.Get(ctx, r.s.ongoingKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m, err := r.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if m.Status != models.StatusOngoing {
		return nil, nil
	}
	return m, nil
}

func (r *matchRepository) UpdateIfVersion(ctx context.Context, match *models.Match, expected int64) error {
	log := logger.FromContext(ctx).WithPrefix("match_repo")
	log.Debug("updating match: id=%s expected_version=%d status=%s", match.ID, expected, match.Status)

	return r.s.write(ctx, func(ctx context.Context, t *txn) error {
		current, err := r.Get(ctx, match.ID)
		if err != nil {
			return err
		}
		if current.Version != expected {
			log.Debug("stale write rejected: id=%s stored_version=%d", match.ID, current.Version)
			return repository.ErrConflict
		}

		next := *match
		next.Version = expected + 1
		raw, err := encodeMatch(&next)
		if err != nil {
			return err
		}
		t.pipe.Set(ctx, r.s.matchKey(match.ID), raw, 0)
		if match.Status.Terminal() {
			t.pipe.Del(ctx, r.s.ongoingKey())
		}
		match.Version = next.Version
		return nil
	})
}

// AppendMove uses the list length as the sequence counter. The list is watched, so a
// concurrent append aborts one of the two transactions.
func (r *matchRepository) AppendMove(ctx context.Context, move *models.MoveRecord) error {
	return r.s.write(ctx, func(ctx context.Context, t *txn) error {
		key := r.s.movesKey(move.MatchID)
		if err := t.tx.Watch(ctx, key).Err(); err != nil {
			return err
		}
		exists, err := t.tx.Exists(ctx, r.s.matchKey(move.MatchID)).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return repository.ErrNotFound
		}
		n, err := t.tx.LLen(ctx, key).Result()
		if err != nil {
			return err
		}

		rec := *move
		rec.SequenceNumber = n + 1
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		t.pipe.RPush(ctx, key, raw)
		move.SequenceNumber = rec.SequenceNumber
		return nil
	})
}

func (r *matchRepository) Moves(ctx context.Context, matchID string) ([]models.MoveRecord, error) {
	key := r.s.movesKey(matchID)
	rd, err := r.s.reader(ctx, key)
	if err != nil {
		return nil, err
	}
	items, err := rd.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		logger.FromContext(ctx).WithPrefix("match_repo").Error("failed to list moves for %s: %v", matchID, err)
		return nil, err
	}
	moves := make([]models.MoveRecord, 0, len(items))
	for _, item := range items {
		var mv models.MoveRecord
		if err := json.Unmarshal([]byte(item), &mv); err != nil {
			return nil, fmt.Errorf("decode move: %w", err)
		}
		moves = append(moves, mv)
	}
	return moves, nil
}

func encodeMatch(m *models.Match) ([]byte, error) {
	stored := *m
	stored.Moves = nil
	return json.Marshal(stored)
}
