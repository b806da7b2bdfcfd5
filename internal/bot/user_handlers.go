package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"officequeue/internal/domain"
	"officequeue/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if err := b.stateService.ClearUserState(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to reset user state")
	}

	if b.isOperator(userID) {
		welcome := "👋 <b>Панель оператора</b>\n\n" +
			"<b>Основные функции:</b>\n" +
			"• 👀 Посмотреть текущую очередь\n" +
			"• ⏰ Проверить статус кабинета\n" +
			"<b>Управление:</b>\n" +
			"• ✅ Открыть кабинет\n" +
			"• ❌ Закрыть кабинет\n" +
			"• ⏸️ Приостановить\n" +
			"• 👤 Принять или отклонить следующего\n" +
			"• ✏️ Изменить имя в очереди\n" +
			"• 🗑️ Очистить очередь\n" +
			"• 📥 Выгрузить журнал"
		b.sendWithKeyboard(msg.Chat.ID, welcome, b.getOperatorKeyboard())
		return
	}

	welcome := "👋 <b>Добро пожаловать в электронную очередь!</b>\n\n" +
		"<b>Основные функции:</b>\n" +
		"• 👀 Посмотреть текущую очередь\n" +
		"• 📝 Встать в очередь\n" +
		"• 🔍 Узнать свой номер\n" +
		"• 🚪 Выйти из очереди\n" +
		"• ⏰ Проверить статус кабинета"
	b.sendWithKeyboard(msg.Chat.ID, welcome, b.getUserKeyboard())
}

func (b *Bot) handleHelp(userID, chatID int64) {
	text := "ℹ️ <b>Команды:</b>\n" +
		"/queue - текущая очередь\n" +
		"/join - встать в очередь\n" +
		"/position - мой номер\n" +
		"/leave - выйти из очереди\n" +
		"/status - статус кабинета"
	b.sendWithKeyboard(chatID, text, b.mainKeyboard(userID))
}

func (b *Bot) handleViewQueue(ctx context.Context, chatID int64) {
	entries, err := b.queueService.Snapshot(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load queue")
		b.sendError(chatID, err)
		return
	}
	status, err := b.queueService.GetStatus(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load office status")
		status = nil
	}
	b.sendMessage(chatID, formatQueue(entries, status))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	status, err := b.queueService.GetStatus(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load office status")
		b.sendError(chatID, err)
		return
	}

	text := fmt.Sprintf("⏰ <b>Статус кабинета:</b> %s", statusLabel(status.Status))
	if status.Message != "" {
		text += "\n" + escape(status.Message)
	}
	text += fmt.Sprintf("\n\n🕒 Обновлен: %s", status.UpdatedAt.Format("02.01.2006 15:04"))
	b.sendMessage(chatID, text)
}

// admissionText renders the refusal for a closed or paused office with the operator's note.
func (b *Bot) admissionText(ctx context.Context, err error) string {
	text := b.getErrorMessage(err)
	if status, sErr := b.queueService.GetStatus(ctx); sErr == nil && status.Message != "" {
		text += "\n" + escape(status.Message)
	}
	return text
}

func (b *Bot) handleJoinStart(ctx context.Context, userID, chatID int64) {
	if b.isOperator(userID) {
		b.sendMessage(chatID, "👑 Оператор не может вставать в очередь.")
		return
	}

	if err := b.queueService.EnsureAdmission(ctx); err != nil {
		if errors.Is(err, domain.ErrOfficeClosed) || errors.Is(err, domain.ErrOfficePaused) {
			b.sendMessage(chatID, b.admissionText(ctx, err))
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to check admission")
		b.sendError(chatID, err)
		return
	}

	position, err := b.queueService.PositionOf(ctx, userID)
	switch {
	case err == nil:
		b.sendMessage(chatID, fmt.Sprintf("⚠️ Вы уже в очереди! Ваш номер: <b>%d</b>", position))
		return
	case !errors.Is(err, domain.ErrNotInQueue):
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to check position")
		b.sendError(chatID, err)
		return
	}

	if err := b.stateService.SetUserState(ctx, userID, models.StateAwaitingName, nil); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to save user state")
		b.sendError(chatID, err)
		return
	}
	b.sendWithKeyboard(chatID, "📝 <b>Введите ваше имя для очереди:</b>", b.getCancelKeyboard())
}

func (b *Bot) handleJoinName(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	name := strings.TrimSpace(msg.Text)

	// пока пользователь вводил имя, кабинет могли закрыть
	if err := b.queueService.EnsureAdmission(ctx); err != nil {
		_ = b.stateService.ClearUserState(ctx, userID)
		if errors.Is(err, domain.ErrOfficeClosed) || errors.Is(err, domain.ErrOfficePaused) {
			b.sendWithKeyboard(chatID, b.admissionText(ctx, err), b.getUserKeyboard())
			return
		}
		b.sendError(chatID, err)
		return
	}

	position, err := b.queueService.Join(ctx, userID, name)
	switch {
	case errors.Is(err, domain.ErrInvalidName):
		// остаемся на шаге ввода имени
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	case errors.Is(err, domain.ErrAlreadyQueued):
		_ = b.stateService.ClearUserState(ctx, userID)
		text := b.getErrorMessage(err)
		if pos, pErr := b.queueService.PositionOf(ctx, userID); pErr == nil {
			text = fmt.Sprintf("⚠️ Вы уже в очереди! Ваш номер: <b>%d</b>", pos)
		}
		b.sendWithKeyboard(chatID, text, b.getUserKeyboard())
		return
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to join queue")
		b.sendError(chatID, err)
		return
	}

	if err := b.stateService.ClearUserState(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to clear user state")
	}

	text := fmt.Sprintf("✅ <b>Вы добавлены в очередь!</b>\n\n"+
		"• Ваш номер: <b>%d</b>\n"+
		"• Имя в очереди: <b>%s</b>\n"+
		"• Людей перед вами: <b>%d</b>",
		position, escape(name), position-1)
	b.sendWithKeyboard(chatID, text, b.getUserKeyboard())
}

func (b *Bot) handleMyPosition(ctx context.Context, userID, chatID int64) {
	position, err := b.queueService.PositionOf(ctx, userID)
	if errors.Is(err, domain.ErrNotInQueue) {
		b.sendMessage(chatID, "ℹ️ <b>Вы не в очереди</b>")
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to get position")
		b.sendError(chatID, err)
		return
	}

	entries, err := b.queueService.Snapshot(ctx)
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	b.sendMessage(chatID, fmt.Sprintf("🔢 <b>Ваш номер:</b> %d\n👥 <b>Перед вами:</b> %d\n📊 <b>Всего в очереди:</b> %d",
		position, position-1, len(entries)))
}

func (b *Bot) handleLeave(ctx context.Context, userID, chatID int64) {
	removed, err := b.queueService.Leave(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to leave queue")
		b.sendError(chatID, err)
		return
	}

	if err := b.stateService.ClearUserState(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to clear user state")
	}

	if removed {
		b.sendWithKeyboard(chatID, "✅ <b>Вы вышли из очереди</b>", b.mainKeyboard(userID))
		return
	}
	b.sendWithKeyboard(chatID, "ℹ️ <b>Вы не были в очереди</b>", b.mainKeyboard(userID))
}
