package repository

import (
	"context"
	"testing"
	"time"

	"officequeue/internal/config"
	"officequeue/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return s, client
}

func TestNewRedisClient(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewRedisClient(config.RedisConfig{URL: "redis://" + s.Addr() + "/0", PoolSize: 3})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 3, client.Options().PoolSize)
	assert.NoError(t, Ping(context.Background(), client))

	client, err = NewRedisClient(config.RedisConfig{Address: s.Addr()})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, Ping(context.Background(), client))

	_, err = NewRedisClient(config.RedisConfig{URL: "://bad"})
	assert.Error(t, err)
}

func TestRedisStateRepository(t *testing.T) {
	s, client := setupMiniredis(t)
	repo := NewRedisStateRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.UserState{
			UserID:      123,
			CurrentStep: models.StateAwaitingNewName,
			TempData:    map[string]interface{}{"target_user_id": float64(42)},
		}
		require.NoError(t, repo.SetState(ctx, state))

		got, err := repo.GetState(ctx, 123)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, state.CurrentStep, got.CurrentStep)
		assert.Equal(t, int64(42), got.GetInt64("target_user_id"))
		assert.True(t, s.Exists(sessionKey(123)))
	})

	t.Run("TTL", func(t *testing.T) {
		require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 7, CurrentStep: "x"}))
		s.FastForward(2 * time.Hour)

		got, err := repo.GetState(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearState", func(t *testing.T) {
		require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 456, CurrentStep: "test"}))
		require.NoError(t, repo.ClearState(ctx, 456))

		got, _ := repo.GetState(ctx, 456)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		userID := int64(789)
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, userID, 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)
		allowed, err = repo.CheckRateLimit(ctx, userID, 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)
		allowed, err = repo.CheckRateLimit(ctx, userID, 2, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, userID, 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisStateRepository(nil, time.Hour)
		_, err := repo.GetState(ctx, 123)
		assert.ErrorIs(t, err, errNilClient)
		assert.ErrorIs(t, Ping(ctx, nil), errNilClient)
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		_, err := repo.GetState(ctx, 1)
		assert.Error(t, err)
	})
}
