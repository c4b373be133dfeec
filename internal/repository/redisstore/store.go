// Package redisstore implements the Store on Redis. Every transition runs inside WATCH/MULTI/EXEC:
// reads watch the keys they touch, writes are queued on one transaction pipeline, and a
// concurrent change to any watched key aborts the EXEC.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/repository"
)

type Store struct {
	rdb    *redis.Client
	prefix string

	matches *matchRepository
	ledger  *ledgerRepository
}

type txn struct {
	tx   *redis.Tx
	pipe redis.Pipeliner
}

type txKey struct{ s *Store }

// cmdReader is the read subset shared by *redis.Client and *redis.Tx.
type cmdReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// Open parses a redis:// URL and connects.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(rdb, prefix), nil
}

// New wraps an existing client. Keys are namespaced under prefix.
func New(rdb *redis.Client, prefix string) *Store {
	s := &Store{rdb: rdb, prefix: prefix}
	s.matches = &matchRepository{s: s}
	s.ledger = &ledgerRepository{s: s}
	return s
}

func (s *Store) Matches() repository.MatchRepository { return s.matches }
func (s *Store) Ledger() repository.LedgerRepository { return s.ledger }

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.txn(ctx); ok {
		return fn(ctx)
	}
	log := logger.FromContext(ctx).WithPrefix("redis_store")

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		t := &txn{tx: tx, pipe: tx.TxPipeline()}
		if err := fn(context.WithValue(ctx, txKey{s}, t)); err != nil {
			t.pipe.Discard()
			return err
		}
		if t.pipe.Len() == 0 {
			return nil
		}
		_, err := t.pipe.Exec(ctx)
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		log.Debug("transaction aborted by concurrent write")
		return repository.ErrConflict
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }
func (s *Store) Close() error                   { return s.rdb.Close() }

func (s *Store) txn(ctx context.Context) (*txn, bool) {
	t, ok := ctx.Value(txKey{s}).(*txn)
	return t, ok
}

// write runs fn inside the caller's transaction, or a fresh one.
func (s *Store) write(ctx context.Context, fn func(ctx context.Context, t *txn) error) error {
	return s.Atomic(ctx, func(ctx context.Context) error {
		t, _ := s.txn(ctx)
		return fn(ctx, t)
	})
}

// reader returns the connection to read from. Inside a transaction the keys are watched
// first so that a concurrent change aborts the commit.
func (s *Store) reader(ctx context.Context, keys ...string) (cmdReader, error) {
	t, ok := s.txn(ctx)
	if !ok {
		return s.rdb, nil
	}
	if err := t.tx.Watch(ctx, keys...).Err(); err != nil {
		return nil, err
	}
	return t.tx, nil
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *Store) matchKey(id string) string   { return s.key("match", id) }
func (s *Store) movesKey(id string) string   { return s.key("match", id, "moves") }
func (s *Store) ongoingKey() string          { return s.key("ongoing") }
func (s *Store) historyKey(id string) string { return s.key("history", id) }
func (s *Store) historyIndexKey() string     { return s.key("history") }
func (s *Store) statsKey(id string) string   { return s.key("stats", id) }
func (s *Store) statsIndexKey() string       { return s.key("stats") }
