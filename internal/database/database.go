package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"officequeue/internal/domain"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the canonical sqlite implementation of domain.Store.
type DB struct {
	*sql.DB
	logger *zerolog.Logger

	// queueMu serializes queue mutations on top of the single connection.
	queueMu sync.Mutex

	// openedAt stamps the fallback office status for a store that was never initialized.
	openedAt time.Time
}

var _ domain.Store = (*DB)(nil)

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite is a single-writer engine; one connection also keeps :memory: shared.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("База данных инициализирована")
	return &DB{DB: sqlDB, logger: logger, openedAt: time.Now()}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            user_id INTEGER PRIMARY KEY,
            display_name TEXT NOT NULL,
            username TEXT NOT NULL DEFAULT '',
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            name_overridden BOOLEAN NOT NULL DEFAULT 0,
            registered_at DATETIME NOT NULL,
            last_seen_at DATETIME NOT NULL
        )`,
		// joined_at хранится в наносекундах, чтобы порядок был строгим
		`CREATE TABLE IF NOT EXISTS queue (
            user_id INTEGER PRIMARY KEY REFERENCES users(user_id),
            joined_at INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS office_status (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            status TEXT NOT NULL CHECK (status IN ('open', 'closed', 'paused')),
            message TEXT NOT NULL DEFAULT '',
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS system (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS visits (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            display_name TEXT NOT NULL,
            outcome TEXT NOT NULL,
            joined_at INTEGER NOT NULL,
            finished_at INTEGER NOT NULL
        )`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_joined_at ON queue(joined_at)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_finished_at ON visits(finished_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// withTx runs fn in a transaction; fn errors are returned as is.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.Unavailable("commit transaction", err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
