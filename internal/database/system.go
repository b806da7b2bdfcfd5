package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"officequeue/internal/domain"
	"officequeue/internal/models"
)

func (db *DB) SetServing(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO system (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		models.SystemKeyServingUser, strconv.FormatInt(userID, 10))
	if err != nil {
		return domain.Unavailable("set serving", err)
	}
	return nil
}

func (db *DB) GetServing(ctx context.Context) (int64, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM system WHERE key = ?`, models.SystemKeyServingUser).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, domain.Unavailable("get serving", err)
	}

	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		// битое значение считаем отсутствующим указателем
		return 0, false, nil
	}
	return userID, true, nil
}

func (db *DB) ClearServing(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM system WHERE key = ?`, models.SystemKeyServingUser); err != nil {
		return domain.Unavailable("clear serving", err)
	}
	return nil
}

func clearServingIf(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM system WHERE key = ? AND value = ?`,
		models.SystemKeyServingUser, strconv.FormatInt(userID, 10))
	if err != nil {
		return domain.Unavailable("clear serving", err)
	}
	return nil
}
