package domain

import (
	"context"
	"time"

	"officequeue/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// IdentityDirectory maps user ids to display names.
type IdentityDirectory interface {
	UpsertUser(ctx context.Context, profile models.Profile) (string, error)
	RenameUser(ctx context.Context, userID int64, name string) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SearchQueuedByName(ctx context.Context, substring string) ([]*models.User, error)
	GetAllUserIDs(ctx context.Context) ([]int64, error)
}

// QueueRepository is the FIFO admission list. Join, Leave, PopFront and Clear
// are serialized by the implementation.
type QueueRepository interface {
	Join(ctx context.Context, userID int64, name string) (int, error)
	Leave(ctx context.Context, userID int64) (bool, error)
	PositionOf(ctx context.Context, userID int64) (int, error)
	Snapshot(ctx context.Context) ([]*models.QueueEntry, error)
	Clear(ctx context.Context) error
	PopFront(ctx context.Context) (*models.QueueEntry, error)
	RenameInQueue(ctx context.Context, userID int64, name string) error
}

type OfficeStatusRepository interface {
	InitOfficeStatus(ctx context.Context, status models.OfficeState) (*models.OfficeStatus, error)
	SetOfficeStatus(ctx context.Context, status models.OfficeState, message string) (*models.OfficeStatus, error)
	GetOfficeStatus(ctx context.Context) (*models.OfficeStatus, error)
}

type ServingRepository interface {
	SetServing(ctx context.Context, userID int64) error
	GetServing(ctx context.Context) (int64, bool, error)
	ClearServing(ctx context.Context) error
}

type VisitLog interface {
	RecordVisit(ctx context.Context, visit *models.Visit) error
	GetVisitsSince(ctx context.Context, since time.Time) ([]*models.Visit, error)
}

// Store is the whole persisted core; sqlite and redis implementations are swappable.
type Store interface {
	IdentityDirectory
	QueueRepository
	OfficeStatusRepository
	ServingRepository
	VisitLog
	Ping(ctx context.Context) error
	Close() error
}

type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type StateManager interface {
	GetUserState(ctx context.Context, userID int64) (*models.UserState, error)
	SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error
	ClearUserState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendHTML(chatID int64, text string) (tgbotapi.Message, error)
	SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error)
	SendDocument(chatID int64, path string, caption string) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type QueueService interface {
	EnsureAdmission(ctx context.Context) error
	Join(ctx context.Context, userID int64, name string) (int, error)
	Leave(ctx context.Context, userID int64) (bool, error)
	PositionOf(ctx context.Context, userID int64) (int, error)
	Snapshot(ctx context.Context) ([]*models.QueueEntry, error)
	Clear(ctx context.Context) error
	RenameInQueue(ctx context.Context, userID int64, name string) error
	SearchByName(ctx context.Context, substring string) ([]*models.User, error)
	SetStatus(ctx context.Context, status string, message string) (*models.OfficeStatus, error)
	GetStatus(ctx context.Context) (*models.OfficeStatus, error)
	ServingID(ctx context.Context) (int64, bool, error)
	CurrentServing(ctx context.Context) (*models.QueueEntry, error)
	Accept(ctx context.Context) (*models.QueueEntry, *models.QueueEntry, error)
	Reject(ctx context.Context) (*models.QueueEntry, *models.QueueEntry, error)
	Stats(ctx context.Context, since time.Time) (*models.QueueStats, error)
	Visits(ctx context.Context, since time.Time) ([]*models.Visit, error)
}

type UserService interface {
	IsOperator(userID int64) bool
	OperatorID() int64
	Touch(ctx context.Context, profile models.Profile) (string, error)
	GetAllUserIDs(ctx context.Context) ([]int64, error)
}

// Broadcaster delivers best-effort notices to every known user.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string, report bool) error
	Notify(ctx context.Context, userID int64, text string) error
}
