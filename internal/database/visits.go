package database

import (
	"context"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"
)

func (db *DB) RecordVisit(ctx context.Context, visit *models.Visit) error {
	if visit.FinishedAt.IsZero() {
		visit.FinishedAt = time.Now()
	}

	result, err := db.ExecContext(ctx, `INSERT INTO visits (user_id, display_name, outcome, joined_at, finished_at)
              VALUES (?, ?, ?, ?, ?)`,
		visit.UserID, visit.DisplayName, visit.Outcome,
		visit.JoinedAt.UnixNano(), visit.FinishedAt.UnixNano())
	if err != nil {
		return domain.Unavailable("record visit", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Unavailable("record visit", err)
	}
	visit.ID = id
	return nil
}

func (db *DB) GetVisitsSince(ctx context.Context, since time.Time) ([]*models.Visit, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, user_id, display_name, outcome, joined_at, finished_at
              FROM visits WHERE finished_at >= ? ORDER BY finished_at ASC`, since.UnixNano())
	if err != nil {
		return nil, domain.Unavailable("get visits", err)
	}
	defer rows.Close()

	var visits []*models.Visit
	for rows.Next() {
		var (
			v              models.Visit
			joined, closed int64
		)
		if err := rows.Scan(&v.ID, &v.UserID, &v.DisplayName, &v.Outcome, &joined, &closed); err != nil {
			return nil, domain.Unavailable("scan visit", err)
		}
		v.JoinedAt = time.Unix(0, joined)
		v.FinishedAt = time.Unix(0, closed)
		visits = append(visits, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("get visits", err)
	}
	return visits, nil
}
