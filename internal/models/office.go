package models

import (
	"strings"
	"time"
)

type OfficeState string

const (
	OfficeOpen   OfficeState = "open"
	OfficeClosed OfficeState = "closed"
	OfficePaused OfficeState = "paused"
)

// ParseOfficeState accepts exactly the three admission states (case-insensitive, trimmed).
func ParseOfficeState(s string) (OfficeState, bool) {
	switch OfficeState(strings.ToLower(strings.TrimSpace(s))) {
	case OfficeOpen:
		return OfficeOpen, true
	case OfficeClosed:
		return OfficeClosed, true
	case OfficePaused:
		return OfficePaused, true
	default:
		return "", false
	}
}

func (s OfficeState) Valid() bool {
	switch s {
	case OfficeOpen, OfficeClosed, OfficePaused:
		return true
	default:
		return false
	}
}

// OfficeStatus is the singleton admission gate record.
type OfficeStatus struct {
	Status    OfficeState `json:"status"`
	Message   string      `json:"message"`
	UpdatedAt time.Time   `json:"updated_at"`
}
