package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"
)

const userColumns = `u.user_id, u.display_name, u.username, u.first_name, u.last_name,
	u.name_overridden, u.registered_at, u.last_seen_at`

// UpsertUser creates the record on first contact and refreshes it afterwards.
// An overridden display name survives profile refreshes.
func (db *DB) UpsertUser(ctx context.Context, profile models.Profile) (string, error) {
	query := `INSERT INTO users (
				user_id, display_name, username, first_name, last_name,
				name_overridden, registered_at, last_seen_at
			) VALUES (?, ?, ?, ?, ?, 0, ?, ?)
              ON CONFLICT(user_id) DO UPDATE SET
                username = excluded.username,
                first_name = excluded.first_name,
                last_name = excluded.last_name,
                display_name = CASE WHEN users.name_overridden THEN users.display_name ELSE excluded.display_name END,
                last_seen_at = excluded.last_seen_at
              RETURNING display_name`
	now := time.Now()
	var name string
	err := db.QueryRowContext(ctx, query,
		profile.UserID,
		profile.DisplayName(),
		profile.Username,
		profile.FirstName,
		profile.LastName,
		now,
		now,
	).Scan(&name)
	if err != nil {
		return "", domain.Unavailable("upsert user", err)
	}
	return name, nil
}

func (db *DB) RenameUser(ctx context.Context, userID int64, name string) error {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, name_overridden = 1 WHERE user_id = ?`, name, userID)
	if err != nil {
		return domain.Unavailable("rename user", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Unavailable("rename user", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (db *DB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.user_id = ?`
	user, err := scanUser(db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.Unavailable("get user", err)
	}
	return user, nil
}

// SearchQueuedByName matches display names of queued users only (case-sensitive).
func (db *DB) SearchQueuedByName(ctx context.Context, substring string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + `
              FROM queue q JOIN users u ON u.user_id = q.user_id
              WHERE instr(u.display_name, ?) > 0
              ORDER BY q.joined_at ASC`
	rows, err := db.QueryContext(ctx, query, substring)
	if err != nil {
		return nil, domain.Unavailable("search users", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, domain.Unavailable("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("search users", err)
	}
	return users, nil
}

func (db *DB) GetAllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, domain.Unavailable("get user ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Unavailable("scan user id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("get user ids", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.UserID, &u.DisplayName, &u.Username, &u.FirstName, &u.LastName,
		&u.NameOverridden, &u.RegisteredAt, &u.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
