package repository

import (
	"context"
	"sync"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"

	"github.com/rs/zerolog"
)

const failoverRetryInterval = time.Minute

// FailoverStateRepository sends session traffic to Redis and switches to the
// in-memory repository while Redis is failing, probing it again every minute.
type FailoverStateRepository struct {
	primary  domain.StateRepository
	fallback domain.StateRepository
	logger   *zerolog.Logger

	mu        sync.Mutex
	down      bool
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to the primary.
func (r *FailoverStateRepository) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.down || r.now().Sub(r.lastCheck) > failoverRetryInterval
}

func (r *FailoverStateRepository) report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		if r.down {
			r.logger.Info().Msg("Primary state repository recovered")
		}
		r.down = false
		return
	}
	if !r.down {
		r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	}
	r.down = true
	r.lastCheck = r.now()
}

// Degraded reports whether the fallback is currently in use.
func (r *FailoverStateRepository) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.down
}

func (r *FailoverStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetState(ctx, userID)
		r.report(err)
		if err == nil {
			return state, nil
		}
	}
	return r.fallback.GetState(ctx, userID)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	if r.usePrimary() {
		err := r.primary.SetState(ctx, state)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, userID int64) error {
	// сессия могла остаться в памяти с периода отказа
	_ = r.fallback.ClearState(ctx, userID)

	if r.usePrimary() {
		err := r.primary.ClearState(ctx, userID)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return nil
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		r.report(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
