package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"officequeue/internal/models"
	"officequeue/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendHTML(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) {
	if _, err := b.tgService.SendWithKeyboard(chatID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message with keyboard")
	}
}

func (b *Bot) sendError(chatID int64, err error) {
	if !service.IsUserError(err) {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Operation failed")
	}
	b.sendMessage(chatID, b.getErrorMessage(err))
}

func escape(s string) string {
	return html.EscapeString(s)
}

func statusLabel(status models.OfficeState) string {
	switch status {
	case models.OfficeOpen:
		return "✅ Открыт"
	case models.OfficeClosed:
		return "❌ Закрыт"
	case models.OfficePaused:
		return "⏸️ Приостановлен"
	}
	return string(status)
}

func formatQueue(entries []*models.QueueEntry, status *models.OfficeStatus) string {
	var sb strings.Builder
	if len(entries) == 0 {
		sb.WriteString("📭 <b>Очередь пуста</b>\n\n")
	} else {
		sb.WriteString("📋 <b>Текущая очередь:</b>\n\n")
		for i, e := range entries {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, escape(e.DisplayName))
		}
		fmt.Fprintf(&sb, "\n<b>Всего в очереди:</b> %d человек(а)\n", len(entries))
	}

	if status != nil {
		sb.WriteString(formatStatusLine(status))
	}
	return sb.String()
}

func formatStatusLine(status *models.OfficeStatus) string {
	line := fmt.Sprintf("\n<b>Статус кабинета:</b> %s", statusLabel(status.Status))
	if status.Message != "" {
		line += "\n" + escape(status.Message)
	}
	return line
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%d ч %d мин", h, m)
	}
	return fmt.Sprintf("%d мин", m)
}

// commandArgs returns the text after a /command, empty when absent.
func commandArgs(msg *tgbotapi.Message) string {
	if msg == nil || !msg.IsCommand() {
		return ""
	}
	return strings.TrimSpace(msg.CommandArguments())
}
