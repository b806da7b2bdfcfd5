package models

import "time"

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Visit is a journal row written when the operator finishes with the head of the queue.
type Visit struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Outcome     string    `json:"outcome"`
	JoinedAt    time.Time `json:"joined_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Wait is the time the visitor spent in line.
func (v Visit) Wait() time.Duration {
	if v.FinishedAt.Before(v.JoinedAt) {
		return 0
	}
	return v.FinishedAt.Sub(v.JoinedAt)
}

// QueueStats summarises the queue and the journal since a given moment.
type QueueStats struct {
	Waiting     int           `json:"waiting"`
	Accepted    int           `json:"accepted"`
	Rejected    int           `json:"rejected"`
	AverageWait time.Duration `json:"average_wait"`
	Since       time.Time     `json:"since"`
}
