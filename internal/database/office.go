package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"
)

// InitOfficeStatus writes the startup default only when no record exists yet.
func (db *DB) InitOfficeStatus(ctx context.Context, status models.OfficeState) (*models.OfficeStatus, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO office_status (id, status, message, updated_at) VALUES (1, ?, '', ?)`,
		string(status), time.Now())
	if err != nil {
		return nil, domain.Unavailable("init office status", err)
	}
	return db.GetOfficeStatus(ctx)
}

func (db *DB) SetOfficeStatus(ctx context.Context, status models.OfficeState, message string) (*models.OfficeStatus, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	now := time.Now()
	_, err := db.ExecContext(ctx, `INSERT INTO office_status (id, status, message, updated_at)
              VALUES (1, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                status = excluded.status,
                message = excluded.message,
                updated_at = excluded.updated_at`,
		string(status), message, now)
	if err != nil {
		return nil, domain.Unavailable("set office status", err)
	}

	return &models.OfficeStatus{Status: status, Message: message, UpdatedAt: now}, nil
}

// GetOfficeStatus falls back to closed, stamped with the moment the store was opened.
func (db *DB) GetOfficeStatus(ctx context.Context) (*models.OfficeStatus, error) {
	var (
		st     models.OfficeStatus
		status string
	)
	err := db.QueryRowContext(ctx,
		`SELECT status, message, updated_at FROM office_status WHERE id = 1`).
		Scan(&status, &st.Message, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.OfficeStatus{Status: models.OfficeClosed, UpdatedAt: db.openedAt}, nil
	}
	if err != nil {
		return nil, domain.Unavailable("get office status", err)
	}
	st.Status = models.OfficeState(status)
	return &st, nil
}
