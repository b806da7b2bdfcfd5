package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	s, client := setupMiniredis(t)
	return s, NewRedisStore(client, nil)
}

func TestRedisStore_QueueScenario(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	pos, err := store.Join(ctx, 100, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = store.Join(ctx, 200, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	_, err = store.Join(ctx, 200, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyQueued)

	removed, err := store.Leave(ctx, 100)
	require.NoError(t, err)
	assert.True(t, removed)

	pos, err = store.PositionOf(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	entries, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(200), entries[0].UserID)
	assert.Equal(t, "Bob", entries[0].DisplayName)

	_, err = store.PositionOf(ctx, 100)
	assert.ErrorIs(t, err, domain.ErrNotInQueue)
}

func TestRedisStore_PopFrontAndServing(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.PopFront(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)

	for _, id := range []int64{1, 2, 3} {
		_, err := store.Join(ctx, id, "")
		require.NoError(t, err)
	}
	require.NoError(t, store.SetServing(ctx, 1))

	head, err := store.PopFront(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), head.UserID)
	assert.Equal(t, models.FallbackName(1), head.DisplayName)

	_, ok, err := store.GetServing(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetServing(ctx, 3))
	removed, err := store.Leave(ctx, 3)
	require.NoError(t, err)
	assert.True(t, removed)
	_, ok, err = store.GetServing(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].UserID)
}

func TestRedisStore_ClearAndRename(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.UpsertUser(ctx, models.Profile{UserID: 1, FirstName: "Alice"})
	require.NoError(t, err)
	_, err = store.Join(ctx, 1, "")
	require.NoError(t, err)
	_, err = store.Join(ctx, 2, "Carol")
	require.NoError(t, err)

	require.NoError(t, store.RenameInQueue(ctx, 2, "Bo"))
	assert.ErrorIs(t, store.RenameInQueue(ctx, 2, "A"), domain.ErrInvalidName)
	assert.ErrorIs(t, store.RenameInQueue(ctx, 9, "Nine"), domain.ErrNotInQueue)

	entries, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].DisplayName)
	assert.Equal(t, "Bo", entries[1].DisplayName)

	name, err := store.UpsertUser(ctx, models.Profile{UserID: 2, Username: "carol"})
	require.NoError(t, err)
	assert.Equal(t, "Bo", name)

	users, err := store.SearchQueuedByName(ctx, "li")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(1), users[0].UserID)

	require.NoError(t, store.SetServing(ctx, 1))
	require.NoError(t, store.Clear(ctx))

	entries, err = store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, ok, err := store.GetServing(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := store.GetAllUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	assert.ErrorIs(t, store.RenameUser(ctx, 404, "Ghost"), domain.ErrUserNotFound)
	_, err = store.GetUser(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRedisStore_ConcurrentJoin(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Join(ctx, 42, "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrAlreadyQueued) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	entries, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRedisStore_OfficeStatus(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	st, err := store.GetOfficeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeClosed, st.Status)

	st, err = store.InitOfficeStatus(ctx, models.OfficeOpen)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeOpen, st.Status)

	st, err = store.InitOfficeStatus(ctx, models.OfficePaused)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeOpen, st.Status)

	_, err = store.SetOfficeStatus(ctx, models.OfficeClosed, "lunch")
	require.NoError(t, err)
	st, err = store.GetOfficeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeClosed, st.Status)
	assert.Equal(t, "lunch", st.Message)
	assert.WithinDuration(t, time.Now(), st.UpdatedAt, 2*time.Second)

	_, err = store.SetOfficeStatus(ctx, "weekend", "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestRedisStore_Visits(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.RecordVisit(ctx, &models.Visit{
		UserID: 1, Outcome: models.OutcomeAccepted,
		JoinedAt: now.Add(-48 * time.Hour), FinishedAt: now.Add(-47 * time.Hour),
	}))
	v := &models.Visit{UserID: 2, Outcome: models.OutcomeRejected, JoinedAt: now.Add(-time.Minute)}
	require.NoError(t, store.RecordVisit(ctx, v))
	assert.Equal(t, int64(2), v.ID)

	visits, err := store.GetVisitsSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, int64(2), visits[0].UserID)
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, store := setupRedisStore(t)
	ctx := context.Background()
	s.Close()

	_, err := store.Join(ctx, 1, "")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = store.Snapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	assert.ErrorIs(t, store.Ping(ctx), domain.ErrStoreUnavailable)
}
