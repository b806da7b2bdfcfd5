package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"officequeue/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Enqueue when the job buffer is saturated.
var ErrQueueFull = errors.New("broadcast queue is full")

// Recipients lists every user who has ever contacted the bot.
type Recipients interface {
	GetAllUserIDs(ctx context.Context) ([]int64, error)
}

// MessageSender delivers a single HTML message.
type MessageSender interface {
	SendHTML(chatID int64, text string) (tgbotapi.Message, error)
}

// BroadcastJob is one notice to fan out. With To set the notice goes only to
// those users; otherwise to everyone the directory knows, minus Exclude.
type BroadcastJob struct {
	Text    string
	To      []int64
	Exclude []int64
	Report  bool
}

// BroadcastResult is the aggregate of one job.
type BroadcastResult struct {
	Total     int
	Delivered int
	Failed    int
}

// BroadcastWorker sends notices to all users in the background. Individual
// delivery failures are retried, counted and never abort the batch.
type BroadcastWorker struct {
	users      Recipients
	sender     MessageSender
	operatorID int64
	retry      RetryPolicy
	jobs       chan BroadcastJob
	logger     *zerolog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewBroadcastWorker(users Recipients, sender MessageSender, operatorID int64, retry RetryPolicy, queueSize int, logger *zerolog.Logger) *BroadcastWorker {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	return &BroadcastWorker{
		users:      users,
		sender:     sender,
		operatorID: operatorID,
		retry:      retry.withDefaults(BroadcastRetry),
		jobs:       make(chan BroadcastJob, queueSize),
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Start consumes jobs until ctx is cancelled.
func (w *BroadcastWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Broadcast worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Broadcast worker stopped")
			return
		case job := <-w.jobs:
			w.Run(ctx, job)
		}
	}
}

// Enqueue schedules a job without blocking.
func (w *BroadcastWorker) Enqueue(job BroadcastJob) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Broadcast schedules a notice to everyone except the operator.
func (w *BroadcastWorker) Broadcast(_ context.Context, text string, report bool) error {
	return w.Enqueue(BroadcastJob{Text: text, Exclude: []int64{w.operatorID}, Report: report})
}

// Notify schedules a personal notice; delivery and its retries happen on the worker.
func (w *BroadcastWorker) Notify(_ context.Context, userID int64, text string) error {
	return w.Enqueue(BroadcastJob{Text: text, To: []int64{userID}})
}

// Run executes a job synchronously and returns the aggregate.
func (w *BroadcastWorker) Run(ctx context.Context, job BroadcastJob) BroadcastResult {
	var res BroadcastResult

	ids := job.To
	if len(ids) == 0 {
		var err error
		if ids, err = w.users.GetAllUserIDs(ctx); err != nil {
			w.logger.Error().Err(err).Msg("Failed to load broadcast recipients")
			return res
		}
	}

	excluded := make(map[int64]struct{}, len(job.Exclude))
	for _, id := range job.Exclude {
		excluded[id] = struct{}{}
	}

	for _, id := range ids {
		if _, skip := excluded[id]; skip {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res.Total++
		if err := w.deliver(ctx, id, job.Text); err != nil {
			res.Failed++
			w.logger.Warn().Err(err).Int64("user_id", id).Msg("Не удалось доставить уведомление")
			continue
		}
		res.Delivered++
	}

	metrics.AddBroadcast(res.Delivered, res.Failed)
	w.logger.Info().
		Int("total", res.Total).
		Int("delivered", res.Delivered).
		Int("failed", res.Failed).
		Msg("Broadcast finished")

	if job.Report && w.operatorID != 0 {
		report := fmt.Sprintf("📊 <b>Уведомление отправлено:</b>\n✅ Успешно: %d\n❌ Не удалось: %d", res.Delivered, res.Failed)
		if err := w.deliver(ctx, w.operatorID, report); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to send broadcast report")
		}
	}
	return res
}

func (w *BroadcastWorker) deliver(ctx context.Context, chatID int64, text string) error {
	var err error
	for attempt := 1; ; attempt++ {
		if _, err = w.sender.SendHTML(chatID, text); err == nil {
			return nil
		}
		if w.retry.Exhausted(attempt) || !isTransient(err) {
			return err
		}

		delay := w.retry.NextDelay(attempt)
		if after := retryAfter(err); after > 0 {
			delay = after
		}
		if sleepErr := w.sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

// isTransient: rate limits, server errors and network failures are retried;
// other API errors (blocked bot, chat not found) are final.
func isTransient(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return true
}

func retryAfter(err error) time.Duration {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
