package models

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

// Conversation steps.
const (
	StateAwaitingName         = "awaiting_name"
	StateAwaitingRenameSearch = "awaiting_rename_search"
	StateAwaitingNewName      = "awaiting_new_name"
)

const (
	// DefaultStateTTL время жизни шага диалога в Redis
	DefaultStateTTL = 30 * 60 // 30 минут в секундах

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// BroadcastQueueSize размер очереди рассылок
	BroadcastQueueSize = 64

	// MinNameLength минимальная длина имени в очереди
	MinNameLength = 2

	// DefaultStatsWindowHours окно статистики по умолчанию
	DefaultStatsWindowHours = 24

	// DefaultExportDays глубина экспорта журнала
	DefaultExportDays = 30

	// SearchResultsLimit сколько совпадений показывать при переименовании
	SearchResultsLimit = 10
)

// System keys.
const (
	SystemKeyServingUser = "serving_user_id"
)
