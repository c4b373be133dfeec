package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
)

type ledgerRepository struct {
	s *Store
}

func (r *ledgerRepository) InsertHistory(ctx context.Context, entry models.HistoryEntry) error {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")

	return r.s.write(ctx, func(ctx context.Context, t *txn) error {
		key := r.s.historyKey(entry.MatchID)
		if err := t.tx.Watch(ctx, key).Err(); err != nil {
			return err
		}
		exists, err := t.tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			log.Warn("history entry already recorded: match=%s", entry.MatchID)
			return repository.ErrDuplicate
		}

		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		t.pipe.Set(ctx, key, raw, 0)
		t.pipe.ZAdd(ctx, r.s.historyIndexKey(), redis.Z{
			Score:  float64(entry.FinishedAt.UnixMilli()),
			Member: entry.MatchID,
		})
		return nil
	})
}

func (r *ledgerRepository) IncrementStats(ctx context.Context, identityID string, delta models.StatsDelta) error {
	return r.s.write(ctx, func(ctx context.Context, t *txn) error {
		key := r.s.statsKey(identityID)
		t.pipe.HIncrBy(ctx, key, "wins", int64(delta.Wins))
		t.pipe.HIncrBy(ctx, key, "losses", int64(delta.Losses))
		t.pipe.HIncrBy(ctx, key, "draws", int64(delta.Draws))
		t.pipe.SAdd(ctx, r.s.statsIndexKey(), identityID)
		return nil
	})
}

func (r *ledgerRepository) Stats(ctx context.Context) ([]models.PlayerStats, error) {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")

	ids, err := r.s.rdb.SMembers(ctx, r.s.statsIndexKey()).Result()
	if err != nil {
		log.Error("failed to list stats ids: %v", err)
		return nil, err
	}
	sort.Strings(ids)

	stats := make([]models.PlayerStats, 0, len(ids))
	for _, id := range ids {
		fields, err := r.s.rdb.HGetAll(ctx, r.s.statsKey(id)).Result()
		if err != nil {
			log.Error("failed to read stats for %s: %v", id, err)
			return nil, err
		}
		st := models.PlayerStats{IdentityID: id}
		st.Wins, _ = strconv.Atoi(fields["wins"])
		st.Losses, _ = strconv.Atoi(fields["losses"])
		st.Draws, _ = strconv.Atoi(fields["draws"])
		stats = append(stats, st)
	}
	return stats, nil
}

func (r *ledgerRepository) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := r.s.rdb.ZRevRange(ctx, r.s.historyIndexKey(), 0, stop).Result()
	if err != nil {
		log.Error("failed to list history: %v", err)
		return nil, err
	}
	entries := make([]models.HistoryEntry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.s.historyKey(id)
	}
	values, err := r.s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.Error("failed to load history entries: %v", err)
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			log.Warn("history index references missing entry: %s", ids[i])
			continue
		}
		var e models.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode history %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
