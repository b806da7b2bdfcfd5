package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/events"
	"officequeue/internal/metrics"
	"officequeue/internal/models"

	"github.com/rs/zerolog"
)

// QueueService is the facade the transports use: it delegates to the store,
// publishes events and keeps the queue metrics current.
type QueueService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

var _ domain.QueueService = (*QueueService)(nil)

func NewQueueService(store domain.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *QueueService {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &QueueService{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
	}
}

// log prefers the request-scoped logger carried by ctx.
func (s *QueueService) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.logger
}

// EnsureAdmission fails unless the office is open.
func (s *QueueService) EnsureAdmission(ctx context.Context) error {
	st, err := s.store.GetOfficeStatus(ctx)
	if err != nil {
		return err
	}
	switch st.Status {
	case models.OfficeOpen:
		return nil
	case models.OfficePaused:
		return domain.ErrOfficePaused
	default:
		return domain.ErrOfficeClosed
	}
}

func (s *QueueService) Join(ctx context.Context, userID int64, name string) (int, error) {
	position, err := s.store.Join(ctx, userID, name)
	if err != nil {
		return 0, err
	}

	metrics.IncJoin()
	entries := s.refreshQueue(ctx)
	s.log(ctx).Info().Int64("user_id", userID).Int("position", position).Msg("User joined queue")
	s.publish(ctx, events.EventQueueJoined, events.QueueEventPayload{
		UserID:      userID,
		DisplayName: joinedName(entries, userID, name),
		Position:    position,
		QueueLength: len(entries),
	})
	return position, nil
}

func (s *QueueService) Leave(ctx context.Context, userID int64) (bool, error) {
	removed, err := s.store.Leave(ctx, userID)
	if err != nil || !removed {
		return removed, err
	}

	metrics.IncLeave()
	entries := s.refreshQueue(ctx)
	s.log(ctx).Info().Int64("user_id", userID).Msg("User left queue")
	s.publish(ctx, events.EventQueueLeft, events.QueueEventPayload{UserID: userID, QueueLength: len(entries)})
	return true, nil
}

func (s *QueueService) PositionOf(ctx context.Context, userID int64) (int, error) {
	return s.store.PositionOf(ctx, userID)
}

func (s *QueueService) Snapshot(ctx context.Context) ([]*models.QueueEntry, error) {
	return s.store.Snapshot(ctx)
}

func (s *QueueService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}

	metrics.SetQueueLength(0)
	s.log(ctx).Info().Msg("Queue cleared")
	s.publish(ctx, events.EventQueueCleared, events.QueueEventPayload{})
	return nil
}

func (s *QueueService) RenameInQueue(ctx context.Context, userID int64, name string) error {
	if err := s.store.RenameInQueue(ctx, userID, name); err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	s.log(ctx).Info().Int64("user_id", userID).Str("name", name).Msg("User renamed")
	s.publish(ctx, events.EventUserRenamed, events.QueueEventPayload{UserID: userID, DisplayName: name})
	return nil
}

func (s *QueueService) SearchByName(ctx context.Context, substring string) ([]*models.User, error) {
	return s.store.SearchQueuedByName(ctx, strings.TrimSpace(substring))
}

// SetStatus parses the token before touching the store.
func (s *QueueService) SetStatus(ctx context.Context, status string, message string) (*models.OfficeStatus, error) {
	state, ok := models.ParseOfficeState(status)
	if !ok {
		return nil, domain.ErrInvalidStatus
	}

	st, err := s.store.SetOfficeStatus(ctx, state, message)
	if err != nil {
		return nil, err
	}

	metrics.SetOfficeStatus(st.Status)
	s.log(ctx).Info().Str("status", string(st.Status)).Str("message", message).Msg("Office status changed")
	s.publish(ctx, events.EventOfficeStatusChanged, events.QueueEventPayload{
		Status:  string(st.Status),
		Message: st.Message,
	})
	return st, nil
}

func (s *QueueService) GetStatus(ctx context.Context) (*models.OfficeStatus, error) {
	return s.store.GetOfficeStatus(ctx)
}

// ServingID reads the serving pointer without moving it.
func (s *QueueService) ServingID(ctx context.Context) (int64, bool, error) {
	return s.store.GetServing(ctx)
}

// CurrentServing returns the entry the operator is working with, pointing at
// the head of the queue when nothing is being served yet.
func (s *QueueService) CurrentServing(ctx context.Context) (*models.QueueEntry, error) {
	entries, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	servingID, ok, err := s.store.GetServing(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, e := range entries {
			if e.UserID == servingID {
				return e, nil
			}
		}
		// указатель устарел
		if err := s.store.ClearServing(ctx); err != nil {
			return nil, err
		}
	}

	if len(entries) == 0 {
		return nil, domain.ErrQueueEmpty
	}
	head := entries[0]
	if err := s.store.SetServing(ctx, head.UserID); err != nil {
		return nil, err
	}
	return head, nil
}

func (s *QueueService) Accept(ctx context.Context) (*models.QueueEntry, *models.QueueEntry, error) {
	return s.finish(ctx, models.OutcomeAccepted)
}

func (s *QueueService) Reject(ctx context.Context) (*models.QueueEntry, *models.QueueEntry, error) {
	return s.finish(ctx, models.OutcomeRejected)
}

// finish pops the head, journals the visit and returns the new head (nil if none).
func (s *QueueService) finish(ctx context.Context, outcome string) (*models.QueueEntry, *models.QueueEntry, error) {
	served, err := s.store.PopFront(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.ClearServing(ctx); err != nil {
		s.log(ctx).Warn().Err(err).Msg("failed to clear serving pointer")
	}

	visit := &models.Visit{
		UserID:      served.UserID,
		DisplayName: served.DisplayName,
		Outcome:     outcome,
		JoinedAt:    served.JoinedAt,
		FinishedAt:  time.Now(),
	}
	if err := s.store.RecordVisit(ctx, visit); err != nil {
		// запись уже снята с очереди, журнал вторичен
		s.log(ctx).Error().Err(err).Int64("user_id", served.UserID).Msg("failed to record visit")
	}

	metrics.IncServed(outcome)

	entries, err := s.store.Snapshot(ctx)
	if err != nil {
		return served, nil, err
	}
	metrics.SetQueueLength(len(entries))

	var next *models.QueueEntry
	payload := events.QueueEventPayload{
		VisitID:     visit.ID,
		UserID:      served.UserID,
		DisplayName: served.DisplayName,
		Outcome:     outcome,
		JoinedAt:    served.JoinedAt,
		QueueLength: len(entries),
		OccurredAt:  visit.FinishedAt,
	}
	if len(entries) > 0 {
		next = entries[0]
		payload.NextUserID = next.UserID
	}

	s.log(ctx).Info().Int64("user_id", served.UserID).Str("outcome", outcome).Msg("Queue head served")
	s.publish(ctx, events.EventQueueServed, payload)
	return served, next, nil
}

func (s *QueueService) Stats(ctx context.Context, since time.Time) (*models.QueueStats, error) {
	entries, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	visits, err := s.store.GetVisitsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := &models.QueueStats{Waiting: len(entries), Since: since}
	var total time.Duration
	for _, v := range visits {
		switch v.Outcome {
		case models.OutcomeAccepted:
			stats.Accepted++
		case models.OutcomeRejected:
			stats.Rejected++
		}
		total += v.Wait()
	}
	if len(visits) > 0 {
		stats.AverageWait = total / time.Duration(len(visits))
	}
	return stats, nil
}

func (s *QueueService) Visits(ctx context.Context, since time.Time) ([]*models.Visit, error) {
	return s.store.GetVisitsSince(ctx, since)
}

// SyncMetrics loads gauges from the store, used once at startup.
func (s *QueueService) SyncMetrics(ctx context.Context) error {
	st, err := s.store.GetOfficeStatus(ctx)
	if err != nil {
		return err
	}
	metrics.SetOfficeStatus(st.Status)
	s.refreshQueue(ctx)
	return nil
}

// refreshQueue re-reads the queue and updates the length gauge; nil on failure.
func (s *QueueService) refreshQueue(ctx context.Context) []*models.QueueEntry {
	entries, err := s.store.Snapshot(ctx)
	if err != nil {
		s.log(ctx).Warn().Err(err).Msg("failed to refresh queue length")
		return nil
	}
	metrics.SetQueueLength(len(entries))
	return entries
}

// joinedName is the name the directory resolved for the new entry.
func joinedName(entries []*models.QueueEntry, userID int64, requested string) string {
	for _, e := range entries {
		if e.UserID == userID {
			return e.DisplayName
		}
	}
	return strings.TrimSpace(requested)
}

func (s *QueueService) publish(ctx context.Context, eventType string, payload events.QueueEventPayload) {
	if s.eventBus == nil {
		return
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.log(ctx).Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

// IsUserError reports whether err is an expected business outcome rather than a failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		domain.ErrAlreadyQueued, domain.ErrNotInQueue, domain.ErrInvalidName,
		domain.ErrInvalidStatus, domain.ErrUserNotFound, domain.ErrQueueEmpty,
		domain.ErrOfficeClosed, domain.ErrOfficePaused,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
