package bot

import (
	"context"
	"fmt"

	"officequeue/internal/domain"
	"officequeue/internal/events"
	"officequeue/internal/models"

	"github.com/rs/zerolog"
)

// Notifier turns queue events into Telegram notices. It only schedules them:
// events are published inside queue operations, and delivery with its
// retries runs on the broadcaster.
type Notifier struct {
	ctx         context.Context
	broadcaster domain.Broadcaster
	report      bool
	logger      *zerolog.Logger
}

func NewNotifier(ctx context.Context, broadcaster domain.Broadcaster, report bool, logger *zerolog.Logger) *Notifier {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Notifier{ctx: ctx, broadcaster: broadcaster, report: report, logger: logger}
}

// Subscribe registers the notifier on the bus.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventOfficeStatusChanged, n.onStatusChanged)
	bus.Subscribe(events.EventQueueCleared, n.onQueueCleared)
	bus.Subscribe(events.EventQueueServed, n.onQueueServed)
}

func statusNotice(status models.OfficeState, message string) string {
	var text string
	switch status {
	case models.OfficeOpen:
		text = "ℹ️ <b>Кабинет открыт!</b> Можно вставать в очередь."
	case models.OfficeClosed:
		text = "⚠️ <b>Кабинет закрыт!</b>"
	case models.OfficePaused:
		text = "⏸️ <b>Прием приостановлен!</b>"
	default:
		return ""
	}
	if message != "" && message != defaultStatusMessage(status) {
		text += "\n" + escape(message)
	}
	return text
}

func (n *Notifier) onStatusChanged(event *events.Event) error {
	var payload events.QueueEventPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}

	text := statusNotice(models.OfficeState(payload.Status), payload.Message)
	if text == "" {
		return fmt.Errorf("unknown office status %q", payload.Status)
	}
	return n.broadcaster.Broadcast(n.ctx, text, n.report)
}

func (n *Notifier) onQueueCleared(_ *events.Event) error {
	return n.broadcaster.Broadcast(n.ctx, "🗑️ <b>Очередь очищена администратором</b>", n.report)
}

func (n *Notifier) onQueueServed(event *events.Event) error {
	var payload events.QueueEventPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}

	var text string
	switch payload.Outcome {
	case models.OutcomeAccepted:
		text = "✅ <b>Ваша очередь подошла!</b> Проходите в кабинет."
	case models.OutcomeRejected:
		text = "❌ <b>Вам отказано в приеме.</b> Вы удалены из очереди."
	}

	var firstErr error
	if text != "" && payload.UserID != 0 {
		if err := n.broadcaster.Notify(n.ctx, payload.UserID, text); err != nil {
			n.logger.Warn().Err(err).Int64("user_id", payload.UserID).Msg("Failed to schedule notice for served user")
			firstErr = err
		}
	}

	if payload.NextUserID != 0 {
		if err := n.broadcaster.Notify(n.ctx, payload.NextUserID, "🔔 <b>Вы следующий!</b> Приготовьтесь, скоро вас пригласят."); err != nil {
			n.logger.Warn().Err(err).Int64("user_id", payload.NextUserID).Msg("Failed to schedule notice for next user")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
