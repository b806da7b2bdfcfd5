package api

import (
	"context"

	"officequeue/internal/models"
)

const (
	permReadQueue    = "read:queue"
	permReadStatus   = "read:status"
	clientKeyUnknown = "unknown"

	apiKeyHeaderDefault = "x-api-key"
)

// QueueReader is the read-only view of the queue the outer APIs expose.
type QueueReader interface {
	Snapshot(ctx context.Context) ([]*models.QueueEntry, error)
	GetStatus(ctx context.Context) (*models.OfficeStatus, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type queueEntryDTO struct {
	Position    int    `json:"position"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	JoinedAt    string `json:"joined_at"`
}

type statusDTO struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	UpdatedAt string `json:"updated_at"`
}

func toQueueDTO(entries []*models.QueueEntry) []queueEntryDTO {
	out := make([]queueEntryDTO, 0, len(entries))
	for i, e := range entries {
		out = append(out, queueEntryDTO{
			Position:    i + 1,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			JoinedAt:    e.JoinedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return out
}

func toStatusDTO(st *models.OfficeStatus) statusDTO {
	return statusDTO{
		Status:    string(st.Status),
		Message:   st.Message,
		UpdatedAt: st.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func hasPermission(granted []string, required string) bool {
	if required == "" {
		return true
	}
	// пустой список означает полный доступ
	if len(granted) == 0 {
		return true
	}
	for _, p := range granted {
		if p == required {
			return true
		}
	}
	return false
}
