package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// defaultStatusMessage is stored when the operator switches status without a note.
func defaultStatusMessage(status models.OfficeState) string {
	switch status {
	case models.OfficeOpen:
		return "Кабинет открыт"
	case models.OfficeClosed:
		return "Кабинет закрыт"
	case models.OfficePaused:
		return "Прием приостановлен"
	}
	return ""
}

func (b *Bot) handleSetStatus(ctx context.Context, chatID int64, status models.OfficeState, message string) {
	if message == "" {
		message = defaultStatusMessage(status)
	}

	st, err := b.queueService.SetStatus(ctx, string(status), message)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("status", string(status)).Msg("Failed to set office status")
		b.sendError(chatID, err)
		return
	}

	var text string
	switch st.Status {
	case models.OfficeOpen:
		text = "✅ <b>Кабинет открыт</b>"
	case models.OfficeClosed:
		text = "❌ <b>Кабинет закрыт</b>"
	case models.OfficePaused:
		text = "⏸️ <b>Прием приостановлен</b>"
	}
	if st.Message != defaultStatusMessage(st.Status) {
		text += "\n" + escape(st.Message)
	}
	b.sendWithKeyboard(chatID, text, b.getOperatorKeyboard())
}

func (b *Bot) handleClear(ctx context.Context, chatID int64) {
	if err := b.queueService.Clear(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to clear queue")
		b.sendError(chatID, err)
		return
	}
	b.sendWithKeyboard(chatID, "🗑️ <b>Очередь очищена</b>", b.getOperatorKeyboard())
}

func (b *Bot) handleManage(ctx context.Context, chatID int64) {
	serving, err := b.queueService.CurrentServing(ctx)
	if errors.Is(err, domain.ErrQueueEmpty) {
		b.sendWithKeyboard(chatID, "📭 <b>Очередь пуста</b>", b.getManagementKeyboard(nil))
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to get current serving")
		b.sendError(chatID, err)
		return
	}

	b.sendWithKeyboard(chatID, b.servingText(ctx, serving), b.getManagementKeyboard(serving))
}

func (b *Bot) servingText(ctx context.Context, serving *models.QueueEntry) string {
	text := fmt.Sprintf("👤 <b>Сейчас на приеме:</b> %s\n🕒 В очереди с %s",
		escape(serving.DisplayName), serving.JoinedAt.Format("15:04"))
	if entries, err := b.queueService.Snapshot(ctx); err == nil {
		text += fmt.Sprintf("\n👥 Всего в очереди: %d", len(entries))
	}
	return text
}

func (b *Bot) handleServingAction(ctx context.Context, chatID int64, action, name string) {
	// указатель ставится, когда оператору показывают клавиатуру
	shownID, shown, err := b.queueService.ServingID(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to read serving pointer")
		b.sendError(chatID, err)
		return
	}

	current, err := b.queueService.CurrentServing(ctx)
	if errors.Is(err, domain.ErrQueueEmpty) {
		b.sendWithKeyboard(chatID, "📭 <b>Очередь пуста</b>", b.getManagementKeyboard(nil))
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to get current serving")
		b.sendError(chatID, err)
		return
	}

	// кнопка могла остаться от старой клавиатуры, имена бывают одинаковые
	if !shown || current.UserID != shownID || current.DisplayName != name {
		b.sendWithKeyboard(chatID, "⚠️ Очередь изменилась.\n\n"+b.servingText(ctx, current), b.getManagementKeyboard(current))
		return
	}

	var served *models.QueueEntry
	var text string
	if action == "accept" {
		served, _, err = b.queueService.Accept(ctx)
		if err == nil {
			text = fmt.Sprintf("✅ <b>%s</b> принят(а)", escape(served.DisplayName))
		}
	} else {
		served, _, err = b.queueService.Reject(ctx)
		if err == nil {
			text = fmt.Sprintf("❌ <b>%s</b> отклонен(а)", escape(served.DisplayName))
		}
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("action", action).Msg("Failed to finish serving")
		b.sendError(chatID, err)
		return
	}

	next, err := b.queueService.CurrentServing(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrQueueEmpty) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to move to next visitor")
		}
		b.sendWithKeyboard(chatID, text+"\n\n📭 <b>Очередь пуста</b>", b.getManagementKeyboard(nil))
		return
	}
	b.sendWithKeyboard(chatID, text+"\n\n"+b.servingText(ctx, next), b.getManagementKeyboard(next))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	hours := b.config.Bot.StatsWindowHours
	if hours <= 0 {
		hours = models.DefaultStatsWindowHours
	}

	stats, err := b.queueService.Stats(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to compute stats")
		b.sendError(chatID, err)
		return
	}

	text := fmt.Sprintf("📊 <b>Статистика за %d ч:</b>\n\n"+
		"👥 Ожидают: %d\n"+
		"✅ Принято: %d\n"+
		"❌ Отклонено: %d\n"+
		"⏱ Среднее ожидание: %s",
		hours, stats.Waiting, stats.Accepted, stats.Rejected, formatDuration(stats.AverageWait))
	b.sendMessage(chatID, text)
}

func (b *Bot) handleRenameStart(ctx context.Context, userID, chatID int64) {
	entries, err := b.queueService.Snapshot(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load queue")
		b.sendError(chatID, err)
		return
	}
	if len(entries) == 0 {
		b.sendMessage(chatID, "📭 <b>Очередь пуста</b>")
		return
	}

	if err := b.stateService.SetUserState(ctx, userID, models.StateAwaitingRenameSearch, nil); err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendWithKeyboard(chatID, formatQueue(entries, nil)+"\n✏️ <b>Введите номер в очереди или часть имени:</b>", b.getCancelKeyboard())
}

func (b *Bot) handleRenameSearch(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	query := strings.TrimSpace(msg.Text)

	entries, err := b.queueService.Snapshot(ctx)
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	if n, convErr := strconv.Atoi(query); convErr == nil {
		if n < 1 || n > len(entries) {
			b.sendMessage(chatID, fmt.Sprintf("⚠️ Нет участника с номером %d. Попробуйте еще раз:", n))
			return
		}
		b.selectRenameTarget(ctx, msg.From.ID, chatID, entries[n-1].UserID, entries[n-1].DisplayName)
		return
	}

	users, err := b.queueService.SearchByName(ctx, query)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("query", query).Msg("Failed to search queue")
		b.sendError(chatID, err)
		return
	}

	switch len(users) {
	case 0:
		b.sendMessage(chatID, fmt.Sprintf("🔍 Никого не найдено по запросу «%s». Попробуйте еще раз:", escape(query)))
	case 1:
		b.selectRenameTarget(ctx, msg.From.ID, chatID, users[0].UserID, users[0].DisplayName)
	default:
		positions := make(map[int64]int, len(entries))
		for _, e := range entries {
			positions[e.UserID] = e.Position
		}

		var sb strings.Builder
		sb.WriteString("🔍 <b>Найдено несколько участников:</b>\n\n")
		for i, u := range users {
			if i == models.SearchResultsLimit {
				fmt.Fprintf(&sb, "... и еще %d\n", len(users)-i)
				break
			}
			fmt.Fprintf(&sb, "%d. %s\n", positions[u.UserID], escape(u.DisplayName))
		}
		sb.WriteString("\nВведите номер в очереди:")
		b.sendMessage(chatID, sb.String())
	}
}

func (b *Bot) selectRenameTarget(ctx context.Context, operatorID, chatID, targetID int64, name string) {
	data := map[string]interface{}{
		"target_user_id": targetID,
		"target_name":    name,
	}
	if err := b.stateService.SetUserState(ctx, operatorID, models.StateAwaitingNewName, data); err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendWithKeyboard(chatID, fmt.Sprintf("✏️ Введите новое имя для <b>%s</b>:", escape(name)), b.getCancelKeyboard())
}

func (b *Bot) handleRenameNewName(ctx context.Context, state *models.UserState, msg *tgbotapi.Message) {
	operatorID := msg.From.ID
	chatID := msg.Chat.ID
	targetID := state.GetInt64("target_user_id")
	oldName := state.GetString("target_name")
	newName := strings.TrimSpace(msg.Text)

	err := b.queueService.RenameInQueue(ctx, targetID, newName)
	switch {
	case errors.Is(err, domain.ErrInvalidName):
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	case errors.Is(err, domain.ErrNotInQueue), errors.Is(err, domain.ErrUserNotFound):
		_ = b.stateService.ClearUserState(ctx, operatorID)
		b.sendWithKeyboard(chatID, "⚠️ Участник уже покинул очередь", b.getOperatorKeyboard())
		return
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Int64("target_id", targetID).Msg("Failed to rename user")
		b.sendError(chatID, err)
		return
	}

	if err := b.stateService.ClearUserState(ctx, operatorID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to clear user state")
	}
	b.sendWithKeyboard(chatID, fmt.Sprintf("✅ Имя изменено: %s → <b>%s</b>", escape(oldName), escape(newName)), b.getOperatorKeyboard())
}
