package usecase

import (
	"context"
	"time"

	"github.com/retailsync/ledger/internal/domain"
)

// EventRepository defines data access for outbox events.
type EventRepository interface {
	// CreateTx inserts the event and reports false when the id already
	// exists, without error. The idempotency key is the primary key.
	CreateTx(ctx context.Context, tx Transaction, event *domain.Event) (inserted bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	// ClaimForUpdate locks the event row for processing, skipping rows
	// already locked by a concurrent worker. Returns ErrEventNotFound
	// when the row is absent or claimed elsewhere.
	ClaimForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Event, error)
	MarkProcessed(ctx context.Context, tx Transaction, id string, attempt int, at time.Time) error
	// MarkFailed records a failed attempt. A nil nextAttempt parks the
	// event without a retry schedule: validation and policy failures wait
	// for an operator, not the sweeper.
	MarkFailed(ctx context.Context, tx Transaction, id string, attempt int, errMsg string, nextAttempt *time.Time) error
	MarkDead(ctx context.Context, tx Transaction, id string, attempt int, errMsg string) error
	Requeue(ctx context.Context, id string, resetHistory bool, at time.Time) (*domain.Event, error)
	List(ctx context.Context, filter domain.EventFilter) ([]*domain.Event, error)
	// ListChildren returns the sub-events fanned out from a split parent.
	ListChildren(ctx context.Context, parentID string) ([]*domain.Event, error)
	// ListDue returns events eligible for a sweep: failed or pending with
	// an elapsed retry time, plus pending events stuck without one.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Event, error)
	CountByStatus(ctx context.Context) (map[domain.EventStatus]int64, error)
	// PruneProcessed deletes processed events older than the cutoff and
	// returns how many rows went away.
	PruneProcessed(ctx context.Context, before time.Time, limit int) (int64, error)
}

// DocumentRepository defines data access for accounting documents.
type DocumentRepository interface {
	CreateTx(ctx context.Context, tx Transaction, doc *domain.Document, lines []domain.DocumentLine, payments []domain.DocumentPayment, taxes []domain.DocumentTax) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByEventID(ctx context.Context, eventID string) (*domain.Document, error)
	// NextDocumentNo advances the per-company, per-type sequence inside
	// the transaction so numbers are gapless under concurrency.
	NextDocumentNo(ctx context.Context, tx Transaction, companyID string, docType domain.DocumentType, year int) (string, error)
	MarkPosted(ctx context.Context, tx Transaction, id, journalID string, at time.Time) error
}

// JournalRepository defines data access for posted journals.
type JournalRepository interface {
	CreateTx(ctx context.Context, tx Transaction, journal *domain.Journal) error
	GetByID(ctx context.Context, id string) (*domain.Journal, error)
	GetByDocumentID(ctx context.Context, documentID string) (*domain.Journal, error)
	NextJournalNo(ctx context.Context, tx Transaction, companyID string, year int) (string, error)
	MarkReversed(ctx context.Context, tx Transaction, id, reversalID string) error
	// CheckConsistency sums debits minus credits per currency across all
	// posted journals of a company.
	CheckConsistency(ctx context.Context, companyID string) (*domain.ConsistencyReport, error)
}

// RateRepository defines data access for exchange rates.
type RateRepository interface {
	GetByDate(ctx context.Context, date time.Time, t domain.RateType) (*domain.ExchangeRate, error)
	GetLatestBefore(ctx context.Context, date time.Time, t domain.RateType) (*domain.ExchangeRate, error)
	Upsert(ctx context.Context, rate *domain.ExchangeRate) error
	List(ctx context.Context, from, to time.Time, limit int) ([]*domain.ExchangeRate, error)
}

// PeriodRepository defines data access for period locks.
type PeriodRepository interface {
	FindCovering(ctx context.Context, tx Transaction, companyID string, date time.Time) (*domain.PeriodLock, error)
	Upsert(ctx context.Context, lock *domain.PeriodLock) error
	List(ctx context.Context, companyID string) ([]*domain.PeriodLock, error)
}

// MappingRepository defines data access for account role mappings.
type MappingRepository interface {
	// ResolveRoles loads every mapped role of a company.
	ResolveRoles(ctx context.Context, tx Transaction, companyID string) (domain.RoleSet, error)
	Upsert(ctx context.Context, m *domain.AccountMapping) error
	List(ctx context.Context, companyID string) ([]*domain.AccountMapping, error)
}

// DeviceRepository defines data access for registered devices.
type DeviceRepository interface {
	Create(ctx context.Context, device *domain.Device) error
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	UpdateTokenHash(ctx context.Context, id, tokenHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	RecordHeartbeat(ctx context.Context, hb *domain.Heartbeat) error
	List(ctx context.Context, companyID string) ([]*domain.Device, error)
}

// UpdateRepository defines data access for the device pull feed.
type UpdateRepository interface {
	Append(ctx context.Context, kind domain.UpdateKind, refID string, body []byte) (int64, error)
	ListSince(ctx context.Context, afterSeq int64, limit int) ([]domain.Update, error)
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction. Begin opens a nested
// transaction (a savepoint) so one event's failure can be rolled back
// without losing sibling work in the same batch.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Begin(ctx context.Context) (Transaction, error)
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// CompanyLocker serializes posting per company for the duration of a
// transaction.
type CompanyLocker interface {
	// Lock blocks until the company lock is held or the session lock
	// timeout elapses, in which case it returns ErrLockTimeout.
	Lock(ctx context.Context, tx Transaction, companyID string) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// TokenSource issues and hashes device credentials. Only the hash is
// ever stored.
type TokenSource interface {
	NewToken() (raw, hash string, err error)
	Hash(raw string) string
}

// TaskEnqueuer schedules background processing of accepted events.
type TaskEnqueuer interface {
	EnqueueProcess(ctx context.Context, eventID string, delay time.Duration) error
}
