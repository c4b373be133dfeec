// Package sqlstore implements the Store on SQLite or PostgreSQL. Invariants are enforced by
// the schema: a partial unique index admits one ongoing match, match updates are conditioned
// on the version column, and move and history keys are primary keys.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/vytor/chessduel/internal/db"
	"github.com/vytor/chessduel/internal/repository"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{ s *Store }

type Store struct {
	db      *db.DB
	matches *matchRepository
	ledger  *ledgerRepository
}

// New wraps an opened database. The caller keeps ownership of database only until Close.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.matches = &matchRepository{s: s}
	s.ledger = &ledgerRepository{s: s}
	return s
}

func (s *Store) Matches() repository.MatchRepository { return s.matches }
func (s *Store) Ledger() repository.LedgerRepository { return s.ledger }

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{s}).(*sql.Tx); ok {
		return fn(ctx)
	}
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		return fn(context.WithValue(ctx, txKey{s}, tx))
	})
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

// conn returns the transaction carried by ctx, or the pool.
func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{s}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// isUniqueViolation reports whether err is a unique or primary-key constraint failure on
// either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isSerializationFailure reports a PostgreSQL serialization or deadlock abort, which is a
// lost race rather than a fault.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
