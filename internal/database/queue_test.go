package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"officequeue/internal/domain"
	"officequeue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Scenario(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	pos, err := db.Join(ctx, 100, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = db.Join(ctx, 200, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	removed, err := db.Leave(ctx, 100)
	require.NoError(t, err)
	assert.True(t, removed)

	pos, err = db.PositionOf(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(200), entries[0].UserID)
	assert.Equal(t, "Bob", entries[0].DisplayName)
}

func TestQueue_JoinTwice(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Join(ctx, 100, "")
	require.NoError(t, err)

	_, err = db.Join(ctx, 100, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyQueued)

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, models.FallbackName(100), entries[0].DisplayName)
}

func TestQueue_JoinInvalidName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Join(ctx, 100, " A ")
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = db.PositionOf(ctx, 100)
	assert.ErrorIs(t, err, domain.ErrNotInQueue)

	_, err = db.GetUser(ctx, 100)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestQueue_JoinKeepsKnownName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.UpsertUser(ctx, models.Profile{UserID: 5, FirstName: "Ivan", LastName: "Petrov"})
	require.NoError(t, err)

	_, err = db.Join(ctx, 5, "")
	require.NoError(t, err)

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ivan Petrov", entries[0].DisplayName)
}

func TestQueue_PositionMatchesSnapshot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := int64(1); i <= 6; i++ {
		pos, err := db.Join(ctx, i, "")
		require.NoError(t, err)

		got, err := db.PositionOf(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, pos, got)
	}
	_, err := db.Leave(ctx, 3)
	require.NoError(t, err)

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	for i, e := range entries {
		pos, err := db.PositionOf(ctx, e.UserID)
		require.NoError(t, err)
		assert.Equal(t, i+1, pos)
		assert.Equal(t, i+1, e.Position)
	}
}

func TestQueue_PopFront(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.PopFront(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)

	for _, id := range []int64{10, 20, 30} {
		_, err := db.Join(ctx, id, "")
		require.NoError(t, err)
	}
	require.NoError(t, db.SetServing(ctx, 10))

	head, err := db.PopFront(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), head.UserID)
	assert.Equal(t, 1, head.Position)

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(20), entries[0].UserID)
	assert.Equal(t, int64(30), entries[1].UserID)

	_, ok, err := db.GetServing(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_LeaveClearsServing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Join(ctx, 1, "")
	require.NoError(t, err)
	_, err = db.Join(ctx, 2, "")
	require.NoError(t, err)

	require.NoError(t, db.SetServing(ctx, 1))

	removed, err := db.Leave(ctx, 2)
	require.NoError(t, err)
	assert.True(t, removed)

	id, ok, err := db.GetServing(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	removed, err = db.Leave(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err = db.GetServing(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = db.Leave(ctx, 1)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestQueue_Clear(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		_, err := db.Join(ctx, id, "")
		require.NoError(t, err)
	}
	require.NoError(t, db.SetServing(ctx, 1))

	require.NoError(t, db.Clear(ctx))

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	for _, id := range []int64{1, 2, 3} {
		_, err := db.PositionOf(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotInQueue)

		_, err = db.GetUser(ctx, id)
		assert.NoError(t, err)
	}

	_, ok, err := db.GetServing(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_RenameInQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Join(ctx, 1, "Alice")
	require.NoError(t, err)
	_, err = db.Join(ctx, 2, "Carol")
	require.NoError(t, err)

	require.NoError(t, db.RenameInQueue(ctx, 2, "Bo"))

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Bo", entries[1].DisplayName)
	assert.Equal(t, int64(2), entries[1].UserID)

	err = db.RenameInQueue(ctx, 2, "A")
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	entries, err = db.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bo", entries[1].DisplayName)

	err = db.RenameInQueue(ctx, 99, "Nobody")
	assert.ErrorIs(t, err, domain.ErrNotInQueue)
}

func TestQueue_ConcurrentJoinSameUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		duplicate int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.Join(ctx, 42, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrAlreadyQueued):
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicate)

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestQueue_ConcurrentJoinDistinctUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := db.Join(ctx, id, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := db.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 20)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].JoinedAt.Before(entries[i].JoinedAt))
	}
}

func TestQueue_ClosedDB(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := db.Join(ctx, 1, "")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = db.Snapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = db.PositionOf(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = db.GetOfficeStatus(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	assert.ErrorIs(t, db.Ping(ctx), domain.ErrStoreUnavailable)
}
