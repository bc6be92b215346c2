package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
)

// OutboxUseCase is the operator surface over the server-side outbox:
// inspection, dead-letter requeue and queue statistics.
type OutboxUseCase struct {
	eventRepo EventRepository
	enqueuer  TaskEnqueuer
	results   Cache
	auditRepo AuditRepository
	logger    zerolog.Logger
}

// NewOutboxUseCase creates a new OutboxUseCase.
func NewOutboxUseCase(
	eventRepo EventRepository,
	enqueuer TaskEnqueuer,
	results Cache,
	auditRepo AuditRepository,
	logger zerolog.Logger,
) *OutboxUseCase {
	return &OutboxUseCase{
		eventRepo: eventRepo,
		enqueuer:  enqueuer,
		results:   results,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// List returns outbox entries matching the filter.
func (uc *OutboxUseCase) List(ctx context.Context, filter domain.EventFilter) ([]*domain.Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	return uc.eventRepo.List(ctx, filter)
}

// Get returns one event by id.
func (uc *OutboxUseCase) Get(ctx context.Context, id string) (*domain.Event, error) {
	return uc.eventRepo.GetByID(ctx, id)
}

// RequeueInput represents input for requeueing an event.
type RequeueInput struct {
	EventID string
	// ResetHistory zeroes the attempt counter so the event gets a full
	// fresh run of retries. Off by default: requeue preserves history.
	ResetHistory bool
	Operator     string
}

// Requeue puts a failed or dead event back in line for processing.
// Requeueing a pending or processed event is rejected.
func (uc *OutboxUseCase) Requeue(ctx context.Context, input RequeueInput) (*domain.Event, error) {
	now := time.Now().UTC()

	before, err := uc.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if before.Status == domain.EventPending {
		// Already in line; requeueing it again changes nothing.
		return before, nil
	}
	if before.Status != domain.EventFailed && before.Status != domain.EventDead {
		return nil, domain.ErrEventNotRequeueable
	}

	event, err := uc.eventRepo.Requeue(ctx, input.EventID, input.ResetHistory, now)
	if err != nil {
		return nil, err
	}

	// A stale cached dead verdict must not shadow the requeue.
	uc.results.Delete(ctx, resultCacheKey(input.EventID))

	if err := uc.enqueuer.EnqueueProcess(ctx, input.EventID, 0); err != nil {
		uc.logger.Warn().Err(err).Str("event_id", input.EventID).Msg("enqueue failed, sweeper will pick up")
	}

	uc.auditRepo.Create(ctx, &domain.AuditLog{
		ActorID:      input.Operator,
		Action:       string(domain.AuditActionOutboxRequeue),
		ResourceType: "event",
		ResourceID:   input.EventID,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(event),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	})

	uc.logger.Info().
		Str("event_id", input.EventID).
		Str("operator", input.Operator).
		Bool("reset_history", input.ResetHistory).
		Msg("event requeued")

	return event, nil
}

// Stats returns event counts per lifecycle state.
func (uc *OutboxUseCase) Stats(ctx context.Context) (map[domain.EventStatus]int64, error) {
	return uc.eventRepo.CountByStatus(ctx)
}
