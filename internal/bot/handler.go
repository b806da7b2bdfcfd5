package bot

import (
	"context"
	"strings"

	"officequeue/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// menuButtons leave any unfinished dialog step when pressed.
var menuButtons = map[string]bool{
	btnViewQueue: true, btnMyPosition: true, btnLeave: true, btnJoin: true, btnStatus: true,
	btnClose: true, btnOpen: true, btnPause: true, btnManage: true, btnRename: true,
	btnClear: true, btnExport: true, btnBack: true, btnStats: true,
}

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	l := zerolog.Ctx(ctx)
	l.Debug().Int64("user_id", userID).Str("text", text).Msg("Received message")

	if msg.IsCommand() && msg.Command() == "start" {
		b.handleStart(ctx, msg)
		return
	}

	if text == btnCancel {
		b.handleCancel(ctx, userID, chatID)
		return
	}

	// Просмотр очереди и выход работают из любого шага
	switch text {
	case btnViewQueue:
		b.handleViewQueue(ctx, chatID)
		return
	case btnLeave:
		b.handleLeave(ctx, userID, chatID)
		return
	}

	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil {
		l.Error().Err(err).Int64("user_id", userID).Msg("Failed to load user state")
	}
	if state != nil && state.CurrentStep != "" {
		if menuButtons[text] || msg.IsCommand() {
			if err := b.stateService.ClearUserState(ctx, userID); err != nil {
				l.Error().Err(err).Int64("user_id", userID).Msg("Failed to clear user state")
			}
		} else {
			b.handleStateStep(ctx, state, msg)
			return
		}
	}

	if b.isOperator(userID) && b.handleOperatorMessage(ctx, msg, text) {
		return
	}

	if b.handleUserMessage(ctx, msg, text) {
		return
	}

	b.sendWithKeyboard(chatID, "🤔 Не понимаю команду. Воспользуйтесь кнопками меню.", b.mainKeyboard(userID))
}

func (b *Bot) handleStateStep(ctx context.Context, state *models.UserState, msg *tgbotapi.Message) {
	switch state.CurrentStep {
	case models.StateAwaitingName:
		b.handleJoinName(ctx, msg)
	case models.StateAwaitingRenameSearch:
		if b.isOperator(msg.From.ID) {
			b.handleRenameSearch(ctx, msg)
		}
	case models.StateAwaitingNewName:
		if b.isOperator(msg.From.ID) {
			b.handleRenameNewName(ctx, state, msg)
		}
	default:
		zerolog.Ctx(ctx).Warn().Str("step", state.CurrentStep).Msg("Unknown dialog step, resetting")
		_ = b.stateService.ClearUserState(ctx, msg.From.ID)
		b.sendWithKeyboard(msg.Chat.ID, "Выберите действие:", b.mainKeyboard(msg.From.ID))
	}
}

func (b *Bot) handleOperatorMessage(ctx context.Context, msg *tgbotapi.Message, text string) bool {
	chatID := msg.Chat.ID
	cmd := ""
	if msg.IsCommand() {
		cmd = msg.Command()
	}

	switch {
	case text == btnOpen || cmd == "open":
		b.handleSetStatus(ctx, chatID, models.OfficeOpen, commandArgs(msg))
	case text == btnClose || cmd == "close":
		b.handleSetStatus(ctx, chatID, models.OfficeClosed, commandArgs(msg))
	case text == btnPause || cmd == "pause":
		b.handleSetStatus(ctx, chatID, models.OfficePaused, commandArgs(msg))
	case text == btnManage || cmd == "manage":
		b.handleManage(ctx, chatID)
	case text == btnBack:
		b.sendWithKeyboard(chatID, "Главное меню:", b.getOperatorKeyboard())
	case text == btnStats || cmd == "stats":
		b.handleStats(ctx, chatID)
	case text == btnRename || cmd == "rename":
		b.handleRenameStart(ctx, msg.From.ID, chatID)
	case text == btnClear || cmd == "clear":
		b.handleClear(ctx, chatID)
	case text == btnExport || cmd == "export":
		b.handleExport(ctx, chatID)
	case text == btnStatus || cmd == "status":
		b.handleStatus(ctx, chatID)
	case cmd == "queue":
		b.handleViewQueue(ctx, chatID)
	default:
		action, name, ok := servingAction(text)
		if !ok {
			return false
		}
		b.handleServingAction(ctx, chatID, action, name)
	}
	return true
}

func (b *Bot) handleUserMessage(ctx context.Context, msg *tgbotapi.Message, text string) bool {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	cmd := ""
	if msg.IsCommand() {
		cmd = msg.Command()
	}

	switch {
	case text == btnJoin || cmd == "join":
		b.handleJoinStart(ctx, userID, chatID)
	case text == btnMyPosition || cmd == "position":
		b.handleMyPosition(ctx, userID, chatID)
	case text == btnStatus || cmd == "status":
		b.handleStatus(ctx, chatID)
	case cmd == "queue":
		b.handleViewQueue(ctx, chatID)
	case cmd == "leave":
		b.handleLeave(ctx, userID, chatID)
	case cmd == "help":
		b.handleHelp(userID, chatID)
	default:
		return false
	}
	return true
}

func (b *Bot) handleCancel(ctx context.Context, userID, chatID int64) {
	if err := b.stateService.ClearUserState(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to clear user state")
	}
	b.sendWithKeyboard(chatID, "❌ Действие отменено", b.mainKeyboard(userID))
}
