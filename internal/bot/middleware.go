package bot

import (
	"context"
	"time"

	"officequeue/internal/metrics"
	"officequeue/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) withRecovery(ctx context.Context, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncHandlerError()
			zerolog.Ctx(ctx).Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// trackActivity refreshes the directory record so the display name follows the profile.
func (b *Bot) trackActivity(ctx context.Context, from *tgbotapi.User) {
	if from == nil || from.ID == 0 {
		return
	}
	touchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	profile := models.Profile{
		UserID:    from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}
	if _, err := b.userService.Touch(touchCtx, profile); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", from.ID).Msg("Failed to update user activity")
	}
}
