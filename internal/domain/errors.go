package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"officequeue/internal/models"
)

var (
	ErrAlreadyQueued    = errors.New("user is already in the queue")
	ErrNotInQueue       = errors.New("user is not in the queue")
	ErrInvalidName      = errors.New("name must be at least 2 characters long")
	ErrInvalidStatus    = errors.New("invalid office status")
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrUserNotFound = errors.New("user not found")
	ErrQueueEmpty   = errors.New("queue is empty")
	ErrOfficeClosed = errors.New("office is closed")
	ErrOfficePaused = errors.New("office is paused")
)

// NormalizeName trims the name and checks the minimal length in characters.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < models.MinNameLength {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

// Unavailable wraps a persistence failure so callers can match ErrStoreUnavailable
// while the driver error stays in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
