package models

import "time"

// QueueEntry is a waiting entrant as seen through the identity directory.
type QueueEntry struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
	Position    int       `json:"position"`
}
