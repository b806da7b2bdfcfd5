package bot

import (
	"errors"

	"officequeue/internal/domain"
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, domain.ErrAlreadyQueued):
		return "⚠️ Вы уже в очереди!"
	case errors.Is(err, domain.ErrNotInQueue):
		return "ℹ️ <b>Вы не в очереди</b>"
	case errors.Is(err, domain.ErrInvalidName):
		return "❌ Имя должно быть не короче 2 символов. Попробуйте еще раз:"
	case errors.Is(err, domain.ErrInvalidStatus):
		return "⚠️ Неизвестный статус кабинета."
	case errors.Is(err, domain.ErrUserNotFound):
		return "⚠️ Пользователь не найден."
	case errors.Is(err, domain.ErrQueueEmpty):
		return "📭 <b>Очередь пуста</b>"
	case errors.Is(err, domain.ErrOfficeClosed):
		return "❌ <b>Кабинет закрыт!</b>"
	case errors.Is(err, domain.ErrOfficePaused):
		return "⏸️ <b>Прием приостановлен!</b>"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "⚠️ Сервис временно недоступен. Попробуйте повторить через минуту."
	}

	return "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."
}
