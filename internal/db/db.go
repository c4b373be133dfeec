package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vytor/chessduel/internal/logger"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Dialect names a supported SQL backend.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// Placeholder returns the bind-parameter format used by the dialect.
func (d Dialect) Placeholder() squirrel.PlaceholderFormat {
	if d == Postgres {
		return squirrel.Dollar
	}
	return squirrel.Question
}

type DB struct {
	*sql.DB
	Dialect Dialect
	log     *logger.Logger
}

// Open connects to a SQLite file (or ":memory:") and applies migrations.
func Open(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn = fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL", path)
	}
	return open(SQLite, dsn, path)
}

// OpenPostgres connects to PostgreSQL using a libpq connection string and applies migrations.
func OpenPostgres(url string) (*DB, error) {
	return open(Postgres, url, "postgres")
}

func open(dialect Dialect, dsn, label string) (*DB, error) {
	log := logger.Default().WithPrefix("db")
	log.Info("opening database: %s (%s)", label, dialect)

	sqlDB, err := sql.Open(string(dialect), dsn)
	if err != nil {
		log.Error("failed to open database: %v", err)
		return nil, err
	}
	if dialect == SQLite {
		// single writer; also keeps ":memory:" databases on one connection
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{DB: sqlDB, Dialect: dialect, log: log}

	log.Debug("applying migrations")
	if err := db.applyMigrations(context.Background()); err != nil {
		log.Error("failed to apply migrations: %v", err)
		_ = sqlDB.Close()
		return nil, err
	}

	log.Info("database ready")
	return db, nil
}

// Builder returns a squirrel statement builder bound to the dialect's placeholders.
func (db *DB) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(db.Dialect.Placeholder())
}

// Rebind rewrites "?" placeholders for the dialect.
func (db *DB) Rebind(query string) string {
	out, err := db.Dialect.Placeholder().ReplacePlaceholders(query)
	if err != nil {
		return query
	}
	return out
}

func (db *DB) applyMigrations(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return err
	}

	dir := "migrations/sqlite"
	if db.Dialect == Postgres {
		dir = "migrations/postgres"
	}
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		version := entry.Name()
		applied, err := db.isMigrationApplied(ctx, version)
		if err != nil {
			return err
		}
		if applied {
			db.log.Debug("migration %s already applied, skipping", version)
			continue
		}
		sqlBytes, err := migrationsFS.ReadFile(dir + "/" + version)
		if err != nil {
			return err
		}
		db.log.Info("applying migration: %s", version)
		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			db.log.Error("migration %s failed: %v", version, err)
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), version); err != nil {
			return err
		}
		db.log.Info("migration %s applied successfully", version)
	}
	return nil
}

func (db *DB) isMigrationApplied(ctx context.Context, version string) (bool, error) {
	var v string
	err := db.QueryRowContext(ctx, db.Rebind(`SELECT version FROM schema_migrations WHERE version = ?`), version).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Tx runs fn inside a transaction, rolling back when fn fails.
func (db *DB) Tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.log.Error("failed to begin transaction: %v", err)
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		db.log.Debug("transaction rolled back due to error: %v", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		db.log.Error("failed to commit transaction: %v", err)
		return err
	}
	db.log.Debug("transaction committed")
	return nil
}
