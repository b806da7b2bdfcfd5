package worker

import (
	"context"
	"errors"
	"time"

	"officequeue/internal/models"

	"github.com/rs/zerolog"
)

// ErrJournalFull is returned when the journal buffer cannot take another visit.
var ErrJournalFull = errors.New("journal queue is full")

// VisitSink receives finished visits in batches.
type VisitSink interface {
	AppendVisits(ctx context.Context, visits []*models.Visit) error
}

// JournalWorker mirrors finished visits to an external sink.
type JournalWorker struct {
	sink      VisitSink
	retry     RetryPolicy
	visits    chan *models.Visit
	batchSize int
	logger    *zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewJournalWorker(sink VisitSink, retry RetryPolicy, queueSize int, logger *zerolog.Logger) *JournalWorker {
	if queueSize <= 0 {
		queueSize = 128
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	return &JournalWorker{
		sink:      sink,
		retry:     retry.withDefaults(JournalRetry),
		visits:    make(chan *models.Visit, queueSize),
		batchSize: 20,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Enqueue schedules a visit without blocking.
func (w *JournalWorker) Enqueue(v *models.Visit) error {
	if v == nil {
		return nil
	}
	select {
	case w.visits <- v:
		return nil
	default:
		return ErrJournalFull
	}
}

// Start drains the buffer until ctx is cancelled, grouping whatever is
// already pending into one append.
func (w *JournalWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Journal worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Journal worker stopped")
			return
		case v := <-w.visits:
			batch := w.collect(v)
			if err := w.flush(ctx, batch); err != nil {
				w.logger.Error().Err(err).Int("visits", len(batch)).Msg("Не удалось записать журнал в таблицу")
			}
		}
	}
}

func (w *JournalWorker) collect(first *models.Visit) []*models.Visit {
	batch := []*models.Visit{first}
	for len(batch) < w.batchSize {
		select {
		case v := <-w.visits:
			batch = append(batch, v)
		default:
			return batch
		}
	}
	return batch
}

func (w *JournalWorker) flush(ctx context.Context, batch []*models.Visit) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.sink.AppendVisits(ctx, batch); err == nil {
			w.logger.Debug().Int("visits", len(batch)).Msg("Journal rows appended")
			return nil
		}
		if w.retry.Exhausted(attempt) {
			return err
		}
		w.logger.Warn().Err(err).Int("attempt", attempt).Msg("Journal append failed, retrying")
		if sleepErr := w.sleep(ctx, w.retry.NextDelay(attempt)); sleepErr != nil {
			return err
		}
	}
}
