package models

import (
	"fmt"
	"strings"
	"time"
)

// User is a record of the identity directory.
type User struct {
	UserID         int64     `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	Username       string    `json:"username"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	NameOverridden bool      `json:"name_overridden"`
	RegisteredAt   time.Time `json:"registered_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// Profile holds the Telegram profile fields refreshed on every contact.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName builds the name shown in the queue:
// first [+ last], then @username, then User_<id>.
func (p Profile) DisplayName() string {
	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	if first != "" {
		if last != "" {
			return first + " " + last
		}
		return first
	}
	if username := strings.TrimSpace(p.Username); username != "" {
		return "@" + username
	}
	return FallbackName(p.UserID)
}

// FallbackName is used when neither profile data nor an explicit name exist.
func FallbackName(userID int64) string {
	return fmt.Sprintf("User_%d", userID)
}
