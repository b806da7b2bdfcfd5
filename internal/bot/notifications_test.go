package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"officequeue/internal/database"
	"officequeue/internal/events"
	"officequeue/internal/models"
	"officequeue/internal/service"
	"officequeue/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastCall struct {
	Text   string
	Report bool
}

type notifyCall struct {
	UserID int64
	Text   string
}

type fakeBroadcaster struct {
	mu         sync.Mutex
	broadcasts []broadcastCall
	notices    []notifyCall
	notifyErr  error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, text string, report bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, broadcastCall{Text: text, Report: report})
	return nil
}

func (f *fakeBroadcaster) Notify(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notifyCall{UserID: userID, Text: text})
	return f.notifyErr
}

func newTestNotifier(report bool) (*fakeBroadcaster, *events.EventBus) {
	fb := &fakeBroadcaster{}
	bus := events.NewEventBus()
	NewNotifier(context.Background(), fb, report, nil).Subscribe(bus)
	return fb, bus
}

func TestNotifier_StatusChanged(t *testing.T) {
	fb, bus := newTestNotifier(true)

	require.NoError(t, bus.PublishJSON(events.EventOfficeStatusChanged, events.QueueEventPayload{
		Status: string(models.OfficeOpen), Message: "Кабинет открыт",
	}))
	require.NoError(t, bus.PublishJSON(events.EventOfficeStatusChanged, events.QueueEventPayload{
		Status: string(models.OfficeClosed), Message: "До завтра",
	}))

	require.Len(t, fb.broadcasts, 2)
	assert.Equal(t, "ℹ️ <b>Кабинет открыт!</b> Можно вставать в очередь.", fb.broadcasts[0].Text)
	assert.True(t, fb.broadcasts[0].Report)
	assert.Equal(t, "⚠️ <b>Кабинет закрыт!</b>\nДо завтра", fb.broadcasts[1].Text)
}

func TestNotifier_QueueCleared(t *testing.T) {
	fb, bus := newTestNotifier(false)

	require.NoError(t, bus.PublishJSON(events.EventQueueCleared, events.QueueEventPayload{}))

	require.Len(t, fb.broadcasts, 1)
	assert.Contains(t, fb.broadcasts[0].Text, "Очередь очищена администратором")
	assert.False(t, fb.broadcasts[0].Report)
}

func TestNotifier_QueueServed(t *testing.T) {
	fb, bus := newTestNotifier(false)

	require.NoError(t, bus.PublishJSON(events.EventQueueServed, events.QueueEventPayload{
		UserID: 100, Outcome: models.OutcomeAccepted, NextUserID: 200, QueueLength: 1,
	}))

	require.Len(t, fb.notices, 2)
	assert.Equal(t, int64(100), fb.notices[0].UserID)
	assert.Contains(t, fb.notices[0].Text, "Ваша очередь подошла")
	assert.Equal(t, int64(200), fb.notices[1].UserID)
	assert.Contains(t, fb.notices[1].Text, "Вы следующий")
}

func TestNotifier_ServedErrorsReachBus(t *testing.T) {
	fb, bus := newTestNotifier(false)
	fb.notifyErr = errors.New("bot was blocked by the user")

	var handlerErr error
	bus.OnError(func(_ *events.Event, err error) { handlerErr = err })

	require.NoError(t, bus.PublishJSON(events.EventQueueServed, events.QueueEventPayload{
		UserID: 100, Outcome: models.OutcomeRejected,
	}))

	require.Len(t, fb.notices, 1)
	assert.Contains(t, fb.notices[0].Text, "отказано")
	assert.ErrorIs(t, handlerErr, fb.notifyErr)
}

type downSender struct {
	mu       sync.Mutex
	attempts map[int64]int
}

func (s *downSender) SendHTML(chatID int64, _ string) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[chatID]++
	return tgbotapi.Message{}, &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}
}

func (s *downSender) tried(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[chatID]
}

func TestAcceptDoesNotWaitForNotices(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "notify.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &downSender{attempts: map[int64]int{}}
	broadcaster := worker.NewBroadcastWorker(db, sender, testOperatorID, worker.BroadcastRetry, models.BroadcastQueueSize, &logger)
	go broadcaster.Start(ctx)

	bus := events.NewEventBus()
	NewNotifier(ctx, broadcaster, false, &logger).Subscribe(bus)
	queue := service.NewQueueService(db, bus, &logger)

	_, err = queue.Join(ctx, 100, "Alice")
	require.NoError(t, err)
	_, err = queue.Join(ctx, 200, "Bob")
	require.NoError(t, err)

	start := time.Now()
	served, next, err := queue.Accept(ctx)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int64(100), served.UserID)
	assert.Equal(t, int64(200), next.UserID)
	assert.Less(t, elapsed, 250*time.Millisecond, "accept must not wait for telegram retries")

	assert.Eventually(t, func() bool { return sender.tried(100) > 0 }, time.Second, 10*time.Millisecond)
}
