package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
)

const resultCacheTTL = 24 * time.Hour

func resultCacheKey(eventID string) string { return "event:result:" + eventID }

// IngestUseCase accepts device event batches. Acceptance is idempotent
// on the event id and never blocks on processing: accepted events are
// queued for the background worker and the device is told per event
// whether it may stop resubmitting.
type IngestUseCase struct {
	txManager TransactionManager
	eventRepo EventRepository
	results   Cache
	enqueuer  TaskEnqueuer
	auditRepo AuditRepository
	logger    zerolog.Logger
}

// NewIngestUseCase creates a new IngestUseCase.
func NewIngestUseCase(
	txManager TransactionManager,
	eventRepo EventRepository,
	results Cache,
	enqueuer TaskEnqueuer,
	auditRepo AuditRepository,
	logger zerolog.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		txManager: txManager,
		eventRepo: eventRepo,
		results:   results,
		enqueuer:  enqueuer,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// SubmitEventInput is one event of a device batch.
type SubmitEventInput struct {
	EventID   string
	Type      domain.EventType
	Payload   json.RawMessage
	CreatedAt time.Time
}

// SubmitBatch ingests a batch from an authenticated device. Each event
// is handled independently: a malformed entry never rejects the batch.
// The returned slice is index-aligned with the input.
func (uc *IngestUseCase) SubmitBatch(ctx context.Context, device *domain.Device, batch []SubmitEventInput) ([]domain.SubmitResult, error) {
	results := make([]domain.SubmitResult, 0, len(batch))

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var accepted []string
	for _, in := range batch {
		res := uc.submitOne(ctx, tx, device, in, &accepted)
		results = append(results, res)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Enqueue after commit so the worker can only see committed rows.
	// A failed enqueue is recovered by the outbox sweeper.
	for _, id := range accepted {
		if err := uc.enqueuer.EnqueueProcess(ctx, id, 0); err != nil {
			uc.logger.Warn().Err(err).Str("event_id", id).Msg("enqueue failed, sweeper will pick up")
		}
	}

	uc.auditRepo.Create(ctx, &domain.AuditLog{
		ActorID:      device.ID,
		Action:       string(domain.AuditActionEventSubmit),
		ResourceType: "event_batch",
		ResourceID:   device.ID,
		AfterState:   domain.JSON{"count": len(batch), "accepted": len(accepted)},
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    time.Now().UTC(),
	})

	return results, nil
}

func (uc *IngestUseCase) submitOne(ctx context.Context, tx Transaction, device *domain.Device, in SubmitEventInput, accepted *[]string) domain.SubmitResult {
	if in.EventID == "" {
		return domain.SubmitResult{Status: domain.EventFailed, Error: "event_id is required"}
	}
	res := domain.SubmitResult{EventID: in.EventID}

	// Gate rejections still consume the event id: the row is persisted
	// as failed so the rejection shows up in the operator outbox.
	var rejection string
	switch {
	case !domain.KnownEventType(in.Type):
		rejection = domain.ErrUnknownEventType.Error()
	case len(in.Payload) == 0:
		rejection = domain.ErrInvalidPayload.Error()
	}

	// Fast path: a terminal verdict cached from earlier processing.
	if cached, err := uc.cachedResult(ctx, in.EventID); err == nil && cached != nil {
		return *cached
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	event := &domain.Event{
		ID:        in.EventID,
		DeviceID:  device.ID,
		CompanyID: device.CompanyID,
		Type:      in.Type,
		Payload:   in.Payload,
		Status:    domain.EventPending,
		CreatedAt: createdAt,
	}
	if rejection != "" {
		event.Status = domain.EventFailed
		event.AttemptCount = 1
		event.ErrorMessage = &rejection
		if len(event.Payload) == 0 {
			// The payload column rejects empty input.
			event.Payload = json.RawMessage("null")
		}
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		res.Status = domain.EventPending
		res.Error = "transient: " + err.Error()
		return res
	}

	inserted, err := uc.eventRepo.CreateTx(ctx, sp, event)
	if err != nil {
		sp.Rollback(ctx)
		res.Status = domain.EventPending
		res.Error = "transient: " + err.Error()
		return res
	}
	if err := sp.Commit(ctx); err != nil {
		res.Status = domain.EventPending
		res.Error = "transient: " + err.Error()
		return res
	}

	if inserted {
		if rejection != "" {
			res.Status = domain.EventFailed
			res.Error = rejection
			return res
		}
		*accepted = append(*accepted, in.EventID)
		res.Status = domain.EventPending
		return res
	}

	// Duplicate submission: report the current lifecycle state.
	existing, err := uc.eventRepo.GetByID(ctx, in.EventID)
	if err != nil {
		res.Status = domain.EventPending
		res.Error = "transient: " + err.Error()
		return res
	}

	// A processed split parent answers for its children: the device may
	// only stop resubmitting once both entities reached a terminal state.
	if existing.Status == domain.EventProcessed && existing.ParentID == nil {
		if children, err := uc.eventRepo.ListChildren(ctx, in.EventID); err == nil && len(children) > 0 {
			return domain.AggregateSplitResult(in.EventID, children)
		}
	}

	res.Status = existing.Status
	if existing.ErrorMessage != nil {
		res.Error = *existing.ErrorMessage
	}
	if existing.Status == domain.EventDead {
		res.Error = domain.ErrEventDead.Error()
	}
	return res
}

func (uc *IngestUseCase) cachedResult(ctx context.Context, eventID string) (*domain.SubmitResult, error) {
	raw, err := uc.results.Get(ctx, resultCacheKey(eventID))
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	var res domain.SubmitResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	if res.Status != domain.EventProcessed && res.Status != domain.EventDead {
		return nil, nil
	}
	return &res, nil
}
