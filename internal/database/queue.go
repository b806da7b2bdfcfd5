package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"
)

// Join adds the user to the tail of the queue and returns the 1-based position.
// The user record is created or refreshed in the same transaction.
func (db *DB) Join(ctx context.Context, userID int64, name string) (int, error) {
	db.queueMu.Lock()
	defer db.queueMu.Unlock()

	var position int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue WHERE user_id = ?`, userID).Scan(&exists)
		if err != nil {
			return domain.Unavailable("check queue presence", err)
		}
		if exists > 0 {
			return domain.ErrAlreadyQueued
		}

		now := time.Now()
		if err := ensureUser(ctx, tx, userID, name, now); err != nil {
			return err
		}

		// метка времени строго возрастает даже при совпадении часов
		var last sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(joined_at) FROM queue`).Scan(&last); err != nil {
			return domain.Unavailable("read last join", err)
		}
		stamp := now.UnixNano()
		if last.Valid && stamp <= last.Int64 {
			stamp = last.Int64 + 1
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO queue (user_id, joined_at) VALUES (?, ?)`, userID, stamp); err != nil {
			return domain.Unavailable("insert queue entry", err)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM queue WHERE joined_at <= ?`, stamp).Scan(&position); err != nil {
			return domain.Unavailable("count position", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return position, nil
}

// ensureUser resolves the display name for a join: explicit name, then the
// stored one, then the fallback tag.
func ensureUser(ctx context.Context, tx *sql.Tx, userID int64, name string, now time.Time) error {
	if name != "" {
		normalized, err := domain.NormalizeName(name)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO users (
				user_id, display_name, name_overridden, registered_at, last_seen_at
			) VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				display_name = excluded.display_name,
				name_overridden = 1,
				last_seen_at = excluded.last_seen_at`,
			userID, normalized, now, now)
		if err != nil {
			return domain.Unavailable("upsert queue user", err)
		}
		return nil
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO users (
			user_id, display_name, registered_at, last_seen_at
		) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		userID, models.FallbackName(userID), now, now)
	if err != nil {
		return domain.Unavailable("ensure queue user", err)
	}
	return nil
}

// Leave removes the entry and clears the serving pointer if it pointed at the user.
func (db *DB) Leave(ctx context.Context, userID int64) (bool, error) {
	db.queueMu.Lock()
	defer db.queueMu.Unlock()

	var removed bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM queue WHERE user_id = ?`, userID)
		if err != nil {
			return domain.Unavailable("delete queue entry", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return domain.Unavailable("delete queue entry", err)
		}
		if affected == 0 {
			return nil
		}
		removed = true
		return clearServingIf(ctx, tx, userID)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (db *DB) PositionOf(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM queue
              WHERE joined_at <= (SELECT joined_at FROM queue WHERE user_id = ?)`
	var position int
	if err := db.QueryRowContext(ctx, query, userID).Scan(&position); err != nil {
		return 0, domain.Unavailable("position of", err)
	}
	// подзапрос вернул NULL: пользователя нет в очереди
	if position == 0 {
		return 0, domain.ErrNotInQueue
	}
	return position, nil
}

// Snapshot returns the queue in FIFO order with names resolved at call time.
func (db *DB) Snapshot(ctx context.Context) ([]*models.QueueEntry, error) {
	query := `SELECT q.user_id, u.display_name, q.joined_at
              FROM queue q JOIN users u ON u.user_id = q.user_id
              ORDER BY q.joined_at ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.Unavailable("snapshot queue", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		var (
			e     models.QueueEntry
			stamp int64
		)
		if err := rows.Scan(&e.UserID, &e.DisplayName, &stamp); err != nil {
			return nil, domain.Unavailable("scan queue entry", err)
		}
		e.JoinedAt = time.Unix(0, stamp)
		e.Position = len(entries) + 1
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("snapshot queue", err)
	}
	return entries, nil
}

func (db *DB) Clear(ctx context.Context) error {
	db.queueMu.Lock()
	defer db.queueMu.Unlock()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue`); err != nil {
			return domain.Unavailable("clear queue", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM system WHERE key = ?`, models.SystemKeyServingUser); err != nil {
			return domain.Unavailable("clear serving", err)
		}
		return nil
	})
}

// PopFront atomically removes and returns the head of the queue.
func (db *DB) PopFront(ctx context.Context) (*models.QueueEntry, error) {
	db.queueMu.Lock()
	defer db.queueMu.Unlock()

	var head *models.QueueEntry
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var (
			e     models.QueueEntry
			stamp int64
		)
		err := tx.QueryRowContext(ctx, `SELECT q.user_id, u.display_name, q.joined_at
              FROM queue q JOIN users u ON u.user_id = q.user_id
              ORDER BY q.joined_at ASC LIMIT 1`).Scan(&e.UserID, &e.DisplayName, &stamp)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrQueueEmpty
		}
		if err != nil {
			return domain.Unavailable("read queue head", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM queue WHERE user_id = ?`, e.UserID); err != nil {
			return domain.Unavailable("delete queue head", err)
		}
		if err := clearServingIf(ctx, tx, e.UserID); err != nil {
			return err
		}

		e.JoinedAt = time.Unix(0, stamp)
		e.Position = 1
		head = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return head, nil
}

// RenameInQueue renames a queued user; ordering is untouched.
func (db *DB) RenameInQueue(ctx context.Context, userID int64, name string) error {
	if _, err := db.PositionOf(ctx, userID); err != nil {
		return err
	}
	return db.RenameUser(ctx, userID, name)
}
