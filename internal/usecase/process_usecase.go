package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
)

const (
	// DefaultMaxAttempts is how many processing attempts an event gets
	// before it is dead-lettered.
	DefaultMaxAttempts = 5

	processingGuardTTL = 2 * time.Minute

	// processedRetention is how long processed events stay in the ingest
	// log before the sweeper prunes them.
	processedRetention = 30 * 24 * time.Hour
	pruneBatchSize     = 1000
)

func processingKey(eventID string) string { return "event:processing:" + eventID }

// Converter turns an event into a document ready for posting.
type Converter interface {
	Convert(ctx context.Context, event *domain.Event) (*ConvertedDocument, error)
}

// Poster persists and posts a converted document inside a transaction.
type Poster interface {
	Post(ctx context.Context, tx Transaction, conv *ConvertedDocument) (*domain.Journal, error)
}

// Outcome is the result of one processing attempt.
type Outcome struct {
	EventID string
	Status  domain.EventStatus
	Attempt int
	// RetryIn is non-zero when the event failed transiently and should
	// be retried after the delay.
	RetryIn time.Duration
	Err     error
}

// ProcessUseCase drives the event lifecycle: it claims an event, splits
// mixed-entity sales, converts and posts everything else, and records
// the outcome. The status update always commits even when the posting
// work itself rolled back.
type ProcessUseCase struct {
	txManager   TransactionManager
	eventRepo   EventRepository
	converter   Converter
	poster      Poster
	idem        IdempotencyStore
	results     Cache
	enqueuer    TaskEnqueuer
	auditRepo   AuditRepository
	maxAttempts int
	logger      zerolog.Logger
}

// NewProcessUseCase creates a new ProcessUseCase.
func NewProcessUseCase(
	txManager TransactionManager,
	eventRepo EventRepository,
	converter Converter,
	poster Poster,
	idem IdempotencyStore,
	results Cache,
	enqueuer TaskEnqueuer,
	auditRepo AuditRepository,
	maxAttempts int,
	logger zerolog.Logger,
) *ProcessUseCase {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &ProcessUseCase{
		txManager:   txManager,
		eventRepo:   eventRepo,
		converter:   converter,
		poster:      poster,
		idem:        idem,
		results:     results,
		enqueuer:    enqueuer,
		auditRepo:   auditRepo,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Process runs one attempt for the event. It is safe to call for events
// that are already terminal or claimed by another worker.
func (uc *ProcessUseCase) Process(ctx context.Context, eventID string) (*Outcome, error) {
	// Guard against two workers racing the same event between the queue
	// and the row lock.
	taken, _, err := uc.idem.CheckAndSet(ctx, processingKey(eventID), []byte("processing"), processingGuardTTL)
	if err == nil && taken {
		return &Outcome{EventID: eventID, Status: domain.EventPending, RetryIn: 30 * time.Second}, nil
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	event, err := uc.eventRepo.ClaimForUpdate(ctx, tx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			// Claimed elsewhere or not yet committed. Try again shortly.
			return &Outcome{EventID: eventID, Status: domain.EventPending, RetryIn: 15 * time.Second}, nil
		}
		return nil, err
	}
	if event.Terminal() {
		return &Outcome{EventID: eventID, Status: event.Status, Attempt: event.AttemptCount}, nil
	}

	attempt := event.AttemptCount + 1
	now := time.Now().UTC()

	if uc.needsSplit(event) {
		return uc.split(ctx, tx, event, attempt, now)
	}

	// Posting runs inside a savepoint so a failure rolls back the
	// document and journal but keeps the claimed row for the status
	// update on the outer transaction.
	var journal *domain.Journal
	conv, err := uc.converter.Convert(ctx, event)
	if err == nil {
		var sp Transaction
		sp, err = tx.Begin(ctx)
		if err != nil {
			return nil, err
		}
		journal, err = uc.poster.Post(ctx, sp, conv)
		if err != nil {
			sp.Rollback(ctx)
		} else if err = sp.Commit(ctx); err != nil {
			return nil, err
		}
	}

	if err != nil {
		return uc.recordFailure(ctx, tx, event, attempt, now, err)
	}

	if err := uc.eventRepo.MarkProcessed(ctx, tx, event.ID, attempt, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.cacheResult(ctx, event.ID, domain.SubmitResult{EventID: event.ID, Status: domain.EventProcessed})
	uc.refreshParentResult(ctx, event)
	uc.logger.Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("journal_id", journal.ID).
		Int("attempt", attempt).
		Msg("event posted")

	return &Outcome{EventID: event.ID, Status: domain.EventProcessed, Attempt: attempt}, nil
}

func (uc *ProcessUseCase) needsSplit(event *domain.Event) bool {
	if event.Type != domain.EventSaleCompleted || event.ParentID != nil {
		return false
	}
	var peek struct {
		Lines []struct {
			Entity domain.Entity `json:"entity"`
		} `json:"lines"`
	}
	if json.Unmarshal(event.Payload, &peek) != nil {
		return false
	}
	seen := map[domain.Entity]bool{}
	for _, l := range peek.Lines {
		e := l.Entity
		if e == "" {
			e = domain.EntityOfficial
		}
		seen[e] = true
	}
	return len(seen) > 1
}

// split fans a mixed-entity sale out into one child event per entity.
// Child ids derive from the parent id so a replayed parent always maps
// onto the same children. Splitting is the parent's processing step.
func (uc *ProcessUseCase) split(ctx context.Context, tx Transaction, event *domain.Event, attempt int, now time.Time) (*Outcome, error) {
	payload, err := domain.DecodePayload(event.Type, event.Payload)
	if err != nil {
		return uc.recordFailure(ctx, tx, event, attempt, now, err)
	}
	sale, ok := payload.(*domain.SalePayload)
	if !ok {
		return uc.recordFailure(ctx, tx, event, attempt, now, domain.ErrInvalidPayload)
	}
	// Every line must land on a known entity before the fan-out; a typo'd
	// tag would otherwise drop its lines from the ledger silently.
	for i, l := range sale.Lines {
		if l.Entity != "" && l.Entity != domain.EntityOfficial && l.Entity != domain.EntityUnofficial {
			return uc.recordFailure(ctx, tx, event, attempt, now,
				fmt.Errorf("%w: line %d: unknown entity %q", domain.ErrInvalidPayload, i, l.Entity))
		}
	}

	parts := domain.SplitSale(sale)
	children := make([]string, 0, len(parts))
	for _, entity := range []domain.Entity{domain.EntityOfficial, domain.EntityUnofficial} {
		part, ok := parts[entity]
		if !ok {
			continue
		}
		raw, err := json.Marshal(part)
		if err != nil {
			return uc.recordFailure(ctx, tx, event, attempt, now, err)
		}
		childID := domain.SubEventID(event.ID, entity)
		child := &domain.Event{
			ID:        childID,
			ParentID:  &event.ID,
			DeviceID:  event.DeviceID,
			CompanyID: event.CompanyID,
			Type:      domain.EventSaleCompleted,
			Payload:   raw,
			Status:    domain.EventPending,
			CreatedAt: event.CreatedAt,
		}
		if _, err := uc.eventRepo.CreateTx(ctx, tx, child); err != nil {
			return nil, err
		}
		children = append(children, childID)
	}

	if err := uc.eventRepo.MarkProcessed(ctx, tx, event.ID, attempt, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	for _, id := range children {
		if err := uc.enqueuer.EnqueueProcess(ctx, id, 0); err != nil {
			uc.logger.Warn().Err(err).Str("event_id", id).Msg("enqueue failed, sweeper will pick up")
		}
	}

	// The parent row is processed, but the device-facing verdict must
	// track the children: it stays pending until both entities post.
	uc.refreshSplitResult(ctx, event.ID)
	uc.logger.Info().
		Str("event_id", event.ID).
		Strs("children", children).
		Msg("mixed sale split")

	return &Outcome{EventID: event.ID, Status: domain.EventProcessed, Attempt: attempt}, nil
}

// refreshParentResult re-derives a split parent's cached verdict after
// one of its children changed state.
func (uc *ProcessUseCase) refreshParentResult(ctx context.Context, event *domain.Event) {
	if event.ParentID == nil {
		return
	}
	uc.refreshSplitResult(ctx, *event.ParentID)
}

func (uc *ProcessUseCase) refreshSplitResult(ctx context.Context, parentID string) {
	children, err := uc.eventRepo.ListChildren(ctx, parentID)
	if err != nil {
		uc.logger.Warn().Err(err).Str("event_id", parentID).Msg("split result refresh failed")
		return
	}
	if len(children) == 0 {
		return
	}
	uc.cacheResult(ctx, parentID, domain.AggregateSplitResult(parentID, children))
}

func (uc *ProcessUseCase) recordFailure(ctx context.Context, tx Transaction, event *domain.Event, attempt int, now time.Time, cause error) (*Outcome, error) {
	// Release the processing guard so the retry is not held up by it.
	defer uc.idem.Update(ctx, processingKey(event.ID), []byte("failed"), time.Second)

	if attempt >= uc.maxAttempts && !domain.Permanent(cause) {
		if err := uc.eventRepo.MarkDead(ctx, tx, event.ID, attempt, cause.Error()); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		uc.cacheResult(ctx, event.ID, domain.SubmitResult{
			EventID: event.ID,
			Status:  domain.EventDead,
			Error:   cause.Error(),
		})
		uc.refreshParentResult(ctx, event)
		uc.auditRepo.Create(ctx, &domain.AuditLog{
			ActorID:      event.DeviceID,
			Action:       string(domain.AuditActionEventDead),
			ResourceType: "event",
			ResourceID:   event.ID,
			Status:       string(domain.AuditStatusFailure),
			ErrorMessage: cause.Error(),
			CreatedAt:    now,
		})
		uc.logger.Error().
			Err(cause).
			Str("event_id", event.ID).
			Int("attempt", attempt).
			Msg("event dead-lettered")
		return &Outcome{EventID: event.ID, Status: domain.EventDead, Attempt: attempt, Err: cause}, nil
	}

	if domain.Permanent(cause) {
		// Validation and policy failures park as failed with no retry
		// schedule: only a requeue or a corrected event moves them on.
		// Dead stays reserved for attempt exhaustion.
		if err := uc.eventRepo.MarkFailed(ctx, tx, event.ID, attempt, cause.Error(), nil); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		uc.refreshParentResult(ctx, event)
		uc.auditRepo.Create(ctx, &domain.AuditLog{
			ActorID:      event.DeviceID,
			Action:       string(domain.AuditActionEventReject),
			ResourceType: "event",
			ResourceID:   event.ID,
			Status:       string(domain.AuditStatusFailure),
			ErrorMessage: cause.Error(),
			CreatedAt:    now,
		})
		uc.logger.Error().
			Err(cause).
			Str("event_id", event.ID).
			Int("attempt", attempt).
			Msg("event rejected, not retryable")
		return &Outcome{EventID: event.ID, Status: domain.EventFailed, Attempt: attempt, Err: cause}, nil
	}

	next := domain.NextRetryAt(event.ID, attempt, now)
	if err := uc.eventRepo.MarkFailed(ctx, tx, event.ID, attempt, cause.Error(), &next); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	retryIn := next.Sub(now)
	uc.logger.Warn().
		Err(cause).
		Str("event_id", event.ID).
		Int("attempt", attempt).
		Dur("retry_in", retryIn).
		Msg("event attempt failed")

	return &Outcome{EventID: event.ID, Status: domain.EventFailed, Attempt: attempt, RetryIn: retryIn, Err: cause}, nil
}

func (uc *ProcessUseCase) cacheResult(ctx context.Context, eventID string, res domain.SubmitResult) {
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := uc.results.Set(ctx, resultCacheKey(eventID), raw, resultCacheTTL); err != nil {
		uc.logger.Debug().Err(err).Str("event_id", eventID).Msg("result cache write failed")
	}
	uc.idem.Update(ctx, processingKey(eventID), []byte(string(res.Status)), time.Minute)
}

// SweepDue re-enqueues failed events whose retry time has passed. It is
// the crash-safety net behind the per-event scheduling.
func (uc *ProcessUseCase) SweepDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := uc.eventRepo.ListDue(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	for _, ev := range due {
		if err := uc.enqueuer.EnqueueProcess(ctx, ev.ID, 0); err != nil {
			uc.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("sweep enqueue failed")
		}
	}

	// Trim the ingest log while we are here. Retention comfortably
	// outlives any realistic device replay window.
	cutoff := time.Now().UTC().Add(-processedRetention)
	pruned, err := uc.eventRepo.PruneProcessed(ctx, cutoff, pruneBatchSize)
	if err != nil {
		uc.logger.Warn().Err(err).Msg("processed event prune failed")
	} else if pruned > 0 {
		uc.logger.Info().Int64("pruned", pruned).Msg("processed events pruned")
	}

	return len(due), nil
}
