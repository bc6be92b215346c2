package agent

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
)

// Transport is the server surface the syncer drives.
type Transport interface {
	SubmitBatch(ctx context.Context, events []QueuedEvent) ([]domain.SubmitResult, error)
	PullUpdates(ctx context.Context, afterSeq int64, limit int) (*domain.UpdateBatch, error)
	Heartbeat(ctx context.Context, depth int, oldest *time.Time, appVersion string) error
}

// CursorStore persists the pull feed position across restarts.
type CursorStore interface {
	Cursor() int64
	SetCursor(seq int64) error
}

// Applier applies one pulled update to local device state. Updates can
// repeat after a crash, so Apply must be an upsert by ref id.
type Applier interface {
	Apply(update domain.Update) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(update domain.Update) error

// Apply calls the wrapped function.
func (f ApplierFunc) Apply(update domain.Update) error { return f(update) }

// SyncerConfig collects the syncer's dependencies and tuning.
type SyncerConfig struct {
	Queue      *Queue
	Cursor     CursorStore
	Transport  Transport
	Applier    Applier
	Interval   time.Duration
	BatchSize  int
	PullLimit  int
	AppVersion string
	Logger     zerolog.Logger
}

// Syncer runs the device side of the protocol: flush the outbox, pull
// catalog updates, report a heartbeat. Transient transport errors back
// off and retry; a credential rejection stops the loop for good.
type Syncer struct {
	queue      *Queue
	cursor     CursorStore
	transport  Transport
	applier    Applier
	interval   time.Duration
	batchSize  int
	pullLimit  int
	appVersion string
	logger     zerolog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(cfg SyncerConfig) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PullLimit <= 0 {
		cfg.PullLimit = 200
	}
	return &Syncer{
		queue:      cfg.Queue,
		cursor:     cfg.Cursor,
		transport:  cfg.Transport,
		applier:    cfg.Applier,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		pullLimit:  cfg.PullLimit,
		appVersion: cfg.AppVersion,
		logger:     cfg.Logger,
	}
}

// Run loops until the context is cancelled or the device is rejected.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.SyncOnce(ctx); err != nil {
			if errors.Is(err, domain.ErrDeviceUnauthorized) {
				s.logger.Error().Msg("device rejected by server, stopping sync")
				return err
			}
			s.logger.Warn().Err(err).Msg("sync cycle failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncOnce runs a single flush + pull + heartbeat cycle.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if err := s.flush(ctx); err != nil {
		return err
	}
	if err := s.pull(ctx); err != nil {
		return err
	}

	if err := s.transport.Heartbeat(ctx, s.queue.Depth(), s.queue.Oldest(), s.appVersion); err != nil {
		// Liveness reporting never blocks the data path.
		s.logger.Debug().Err(err).Msg("heartbeat failed")
	}
	return nil
}

// flush submits queued events until the backlog is drained. Events are
// acked only once the server reports a terminal status; everything else
// stays queued for the next cycle.
func (s *Syncer) flush(ctx context.Context) error {
	for {
		batch := s.queue.NextBatch(s.batchSize)
		if len(batch) == 0 {
			return nil
		}

		results, err := s.submitWithRetry(ctx, batch)
		if err != nil {
			return err
		}

		settled := make([]string, 0, len(results))
		progressed := false
		for _, res := range results {
			switch res.Status {
			case domain.EventProcessed:
				settled = append(settled, res.EventID)
			case domain.EventDead:
				s.logger.Error().
					Str("event_id", res.EventID).
					Str("error", res.Error).
					Msg("event dead-lettered server-side")
				settled = append(settled, res.EventID)
			case domain.EventPending, domain.EventFailed:
				// Accepted but not posted yet. The id makes the
				// resubmission idempotent.
			}
		}
		if len(settled) > 0 {
			if err := s.queue.Ack(settled); err != nil {
				return err
			}
			progressed = true
		}

		if !progressed {
			// Nothing settled this round; let the next cycle retry
			// instead of spinning on the same batch.
			return nil
		}
	}
}

func (s *Syncer) submitWithRetry(ctx context.Context, batch []QueuedEvent) ([]domain.SubmitResult, error) {
	policy := backoff.WithContext(newBackoff(), ctx)

	var results []domain.SubmitResult
	op := func() error {
		res, err := s.transport.SubmitBatch(ctx, batch)
		if err != nil {
			if errors.Is(err, domain.ErrDeviceUnauthorized) {
				return backoff.Permanent(err)
			}
			return err
		}
		results = res
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Syncer) pull(ctx context.Context) error {
	for {
		batch, err := s.transport.PullUpdates(ctx, s.cursor.Cursor(), s.pullLimit)
		if err != nil {
			return err
		}
		for _, update := range batch.Updates {
			if s.applier != nil {
				if err := s.applier.Apply(update); err != nil {
					s.logger.Warn().
						Err(err).
						Int64("seq", update.Seq).
						Str("kind", string(update.Kind)).
						Msg("failed to apply update")
					// Do not advance past a failed update.
					return err
				}
			}
			if err := s.cursor.SetCursor(update.Seq); err != nil {
				return err
			}
		}
		if !batch.HasMore {
			return nil
		}
	}
}

func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}
