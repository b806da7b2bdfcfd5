package database

import (
	"context"
	"testing"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfficeStatus_DefaultBeforeInit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := db.GetOfficeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeClosed, first.Status)

	time.Sleep(5 * time.Millisecond)
	second, err := db.GetOfficeStatus(ctx)
	require.NoError(t, err)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
}

func TestOfficeStatus_InitOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	st, err := db.InitOfficeStatus(ctx, models.OfficeOpen)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeOpen, st.Status)

	again, err := db.InitOfficeStatus(ctx, models.OfficeClosed)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeOpen, again.Status)
	assert.Equal(t, st.UpdatedAt.Unix(), again.UpdatedAt.Unix())

	_, err = db.InitOfficeStatus(ctx, models.OfficeState("lunch"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestOfficeStatus_Set(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	before := time.Now()
	_, err := db.SetOfficeStatus(ctx, models.OfficeClosed, "lunch")
	require.NoError(t, err)

	st, err := db.GetOfficeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeClosed, st.Status)
	assert.Equal(t, "lunch", st.Message)
	assert.WithinDuration(t, before, st.UpdatedAt, 2*time.Second)

	_, err = db.SetOfficeStatus(ctx, models.OfficeState("broken"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	st, err = db.GetOfficeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OfficeClosed, st.Status)
}

func TestOfficeStatus_AnyTransition(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, target := range []models.OfficeState{
		models.OfficeClosed, models.OfficePaused, models.OfficeOpen,
		models.OfficePaused, models.OfficeClosed, models.OfficeOpen,
	} {
		_, err := db.SetOfficeStatus(ctx, target, "")
		require.NoError(t, err)

		st, err := db.GetOfficeStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, target, st.Status)
	}
}
