package bot

import (
	"strings"

	"officequeue/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Кнопки пользователя
const (
	btnViewQueue  = "👀 Посмотреть очередь"
	btnMyPosition = "🔍 Мой номер в очереди"
	btnLeave      = "🚪 Выйти из очереди"
	btnJoin       = "📝 Встать в очередь"
	btnStatus     = "⏰ Статус кабинета"
)

// Кнопки оператора
const (
	btnClose  = "❌ Закрыть кабинет"
	btnOpen   = "✅ Открыть кабинет"
	btnPause  = "⏸️ Приостановить"
	btnManage = "👤 Управление очередью"
	btnRename = "✏️ Изменить имя"
	btnClear  = "🗑️ Очистить очередь"
	btnExport = "📥 Выгрузить журнал"

	btnAcceptPrefix = "✅ Принять "
	btnRejectPrefix = "❌ Отклонить "
	btnBack         = "◀️ Назад в меню"
	btnStats        = "📊 Статистика очереди"

	btnCancel = "❌ Отмена"
)

func (b *Bot) getUserKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnViewQueue),
			tgbotapi.NewKeyboardButton(btnMyPosition),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnLeave),
			tgbotapi.NewKeyboardButton(btnJoin),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStatus),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

func (b *Bot) getOperatorKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnClose),
			tgbotapi.NewKeyboardButton(btnOpen),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnPause),
			tgbotapi.NewKeyboardButton(btnManage),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnViewQueue),
			tgbotapi.NewKeyboardButton(btnRename),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStatus),
			tgbotapi.NewKeyboardButton(btnClear),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnExport),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// getManagementKeyboard shows accept/reject buttons for the entry being served.
func (b *Bot) getManagementKeyboard(serving *models.QueueEntry) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	if serving != nil {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnRejectPrefix+serving.DisplayName),
			tgbotapi.NewKeyboardButton(btnAcceptPrefix+serving.DisplayName),
		))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnBack),
		tgbotapi.NewKeyboardButton(btnStats),
	))

	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}

func (b *Bot) getCancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

func (b *Bot) mainKeyboard(userID int64) tgbotapi.ReplyKeyboardMarkup {
	if b.isOperator(userID) {
		return b.getOperatorKeyboard()
	}
	return b.getUserKeyboard()
}

// servingAction splits a management button into its action and the name on it.
func servingAction(text string) (action, name string, ok bool) {
	switch {
	case strings.HasPrefix(text, btnAcceptPrefix):
		return "accept", strings.TrimPrefix(text, btnAcceptPrefix), true
	case strings.HasPrefix(text, btnRejectPrefix):
		return "reject", strings.TrimPrefix(text, btnRejectPrefix), true
	}
	return "", "", false
}
