package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// EventRepository implements outbox event persistence
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new event repository
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `id, parent_id, device_id, company_id, type, payload,
	status, attempt_count, error_message, next_attempt_at, created_at, processed_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID,
		&e.ParentID,
		&e.DeviceID,
		&e.CompanyID,
		&e.Type,
		&e.Payload,
		&e.Status,
		&e.AttemptCount,
		&e.ErrorMessage,
		&e.NextAttemptAt,
		&e.CreatedAt,
		&e.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateTx inserts the event inside the transaction. The event id is the
// idempotency key, so a duplicate insert is reported as inserted=false
// rather than an error.
func (r *EventRepository) CreateTx(ctx context.Context, tx usecase.Transaction, event *domain.Event) (bool, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO events (id, parent_id, device_id, company_id, type, payload,
			status, attempt_count, error_message, next_attempt_at, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := pgxTx.Exec(ctx, query,
		event.ID,
		event.ParentID,
		event.DeviceID,
		event.CompanyID,
		event.Type,
		event.Payload,
		event.Status,
		event.AttemptCount,
		event.ErrorMessage,
		event.NextAttemptAt,
		event.CreatedAt,
		event.ProcessedAt,
	)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	return event, err
}

// ClaimForUpdate locks the event row for the duration of the transaction.
// Rows already locked by a concurrent worker are skipped, which surfaces
// as ErrEventNotFound so the caller retries later.
func (r *EventRepository) ClaimForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Event, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE SKIP LOCKED`

	event, err := scanEvent(pgxTx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	return event, err
}

// MarkProcessed records a successful attempt.
func (r *EventRepository) MarkProcessed(ctx context.Context, tx usecase.Transaction, id string, attempt int, at time.Time) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE events
		SET status = $2, attempt_count = $3, error_message = NULL,
		    next_attempt_at = NULL, processed_at = $4
		WHERE id = $1
	`

	return execExpectingRow(ctx, pgxTx, query, id, domain.EventProcessed, attempt, at)
}

// MarkFailed records a failed attempt. A nil nextAttempt leaves the
// event parked: no retry is scheduled and the sweeper skips it.
func (r *EventRepository) MarkFailed(ctx context.Context, tx usecase.Transaction, id string, attempt int, errMsg string, nextAttempt *time.Time) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE events
		SET status = $2, attempt_count = $3, error_message = $4, next_attempt_at = $5
		WHERE id = $1
	`

	return execExpectingRow(ctx, pgxTx, query, id, domain.EventFailed, attempt, errMsg, nextAttempt)
}

// MarkDead parks the event for operator review. Dead events are never
// retried automatically.
func (r *EventRepository) MarkDead(ctx context.Context, tx usecase.Transaction, id string, attempt int, errMsg string) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE events
		SET status = $2, attempt_count = $3, error_message = $4, next_attempt_at = NULL
		WHERE id = $1
	`

	return execExpectingRow(ctx, pgxTx, query, id, domain.EventDead, attempt, errMsg)
}

// Requeue returns a failed or dead event to pending. Attempt history is
// kept unless resetHistory is set.
func (r *EventRepository) Requeue(ctx context.Context, id string, resetHistory bool, at time.Time) (*domain.Event, error) {
	query := `
		UPDATE events
		SET status = $2,
		    attempt_count = CASE WHEN $3 THEN 0 ELSE attempt_count END,
		    error_message = NULL,
		    next_attempt_at = $4
		WHERE id = $1 AND status IN ($5, $6)
		RETURNING ` + eventColumns

	event, err := scanEvent(r.pool.QueryRow(ctx, query,
		id, domain.EventPending, resetHistory, at, domain.EventFailed, domain.EventDead))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	return event, err
}

// List retrieves events matching the filter, newest first.
func (r *EventRepository) List(ctx context.Context, filter domain.EventFilter) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.DeviceID != "" {
		args = append(args, filter.DeviceID)
		query += fmt.Sprintf(` AND device_id = $%d`, len(args))
	}
	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		query += fmt.Sprintf(` AND company_id = $%d`, len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListChildren returns the sub-events fanned out from a split parent,
// in entity order.
func (r *EventRepository) ListChildren(ctx context.Context, parentID string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE parent_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListDue returns events eligible for a sweep: failed events whose next
// attempt time has passed, pending events whose scheduled attempt time
// has passed (a requeue whose enqueue was lost), and pending events
// stuck long enough that their original enqueue was evidently lost.
// Failed events with no schedule are parked for an operator and skipped.
func (r *EventRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE (status = $1 AND next_attempt_at <= $2)
		   OR (status = $3 AND (next_attempt_at <= $2
		       OR (next_attempt_at IS NULL AND created_at <= $4)))
		ORDER BY COALESCE(next_attempt_at, created_at)
		LIMIT $5
	`

	stuckBefore := now.Add(-stuckPendingAge)
	rows, err := r.pool.Query(ctx, query, domain.EventFailed, now, domain.EventPending, stuckBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

// Pending events older than this with no scheduled retry are considered
// lost and re-enqueued by the sweeper.
const stuckPendingAge = 10 * time.Minute

// PruneProcessed trims the ingest log: processed events past the
// retention window are deleted in bounded batches. Documents and
// journals carry everything durable, so nothing of record is lost.
func (r *EventRepository) PruneProcessed(ctx context.Context, before time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM events
		WHERE id IN (
			SELECT id FROM events
			WHERE status = $1 AND processed_at < $2
			ORDER BY processed_at
			LIMIT $3
		)
	`

	tag, err := r.pool.Exec(ctx, query, domain.EventProcessed, before, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountByStatus returns event counts grouped by status.
func (r *EventRepository) CountByStatus(ctx context.Context) (map[domain.EventStatus]int64, error) {
	query := `SELECT status, COUNT(*) FROM events GROUP BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.EventStatus]int64)
	for rows.Next() {
		var status domain.EventStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func collectEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func execExpectingRow(ctx context.Context, tx pgx.Tx, query string, args ...any) error {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}
