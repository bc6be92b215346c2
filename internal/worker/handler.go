package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/infrastructure/metrics"
	"github.com/retailsync/ledger/internal/usecase"
)

// Processor runs one processing attempt and the retry sweep.
type Processor interface {
	Process(ctx context.Context, eventID string) (*usecase.Outcome, error)
	SweepDue(ctx context.Context, limit int) (int, error)
}

// Handler executes queue tasks. A failed attempt is not a task error:
// the outcome is recorded in the database and the retry is scheduled
// here, so asynq's own retry only covers infrastructure failures.
type Handler struct {
	processor      Processor
	enqueuer       usecase.TaskEnqueuer
	metrics        *metrics.Metrics
	sweepBatchSize int
	logger         zerolog.Logger
}

// NewHandler creates a task handler.
func NewHandler(processor Processor, enqueuer usecase.TaskEnqueuer, m *metrics.Metrics, sweepBatchSize int, logger zerolog.Logger) *Handler {
	if sweepBatchSize <= 0 {
		sweepBatchSize = 100
	}
	return &Handler{
		processor:      processor,
		enqueuer:       enqueuer,
		metrics:        m,
		sweepBatchSize: sweepBatchSize,
		logger:         logger,
	}
}

// HandleProcessEvent processes TaskTypeProcessEvent tasks.
func (h *Handler) HandleProcessEvent(ctx context.Context, t *asynq.Task) error {
	var payload ProcessEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error().Err(err).Msg("malformed process task payload")
		return asynq.SkipRetry
	}

	start := time.Now()
	out, err := h.processor.Process(ctx, payload.EventID)
	if err != nil {
		h.logger.Error().Err(err).Str("event_id", payload.EventID).Msg("processing attempt errored")
		return err
	}
	if h.metrics != nil {
		h.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
		h.metrics.EventsProcessed.WithLabelValues(string(out.Status)).Inc()
		if out.Status == domain.EventDead {
			h.metrics.EventsDead.Inc()
		}
	}

	if out.RetryIn > 0 {
		if h.metrics != nil && out.Status == domain.EventFailed {
			h.metrics.EventRetries.Inc()
		}
		if err := h.enqueuer.EnqueueProcess(ctx, out.EventID, out.RetryIn); err != nil {
			// The sweep picks the event up once its retry time passes.
			h.logger.Warn().Err(err).Str("event_id", out.EventID).Msg("retry enqueue failed")
		}
	}

	return nil
}

// HandleSweepOutbox processes TaskTypeSweepOutbox tasks.
func (h *Handler) HandleSweepOutbox(ctx context.Context, t *asynq.Task) error {
	n, err := h.processor.SweepDue(ctx, h.sweepBatchSize)
	if err != nil {
		h.logger.Error().Err(err).Msg("outbox sweep failed")
		return err
	}

	if h.metrics != nil {
		h.metrics.SweepRuns.Inc()
		h.metrics.SweepRequeued.Add(float64(n))
	}
	if n > 0 {
		h.logger.Info().Int("requeued", n).Msg("outbox sweep requeued events")
	}

	return nil
}
