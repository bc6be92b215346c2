package postgres

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// CompanyLocker serializes posting per company with a transaction-scoped
// advisory lock, so document and journal numbering stays gapless without
// table-level locks.
type CompanyLocker struct{}

// NewCompanyLocker creates a new company locker
func NewCompanyLocker() *CompanyLocker {
	return &CompanyLocker{}
}

// Lock blocks until the per-company advisory lock is held. The lock is
// released automatically at commit or rollback. A lock_timeout set for
// the transaction bounds the wait; expiry maps to ErrLockTimeout.
func (l *CompanyLocker) Lock(ctx context.Context, tx usecase.Transaction, companyID string) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	if _, err := pgxTx.Exec(ctx, `SET LOCAL lock_timeout = '5s'`); err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, companyLockKey(companyID))
	if isLockTimeout(err) {
		return domain.ErrLockTimeout
	}
	return err
}

// companyLockKey hashes the company id into the advisory lock keyspace.
func companyLockKey(companyID string) int64 {
	h := fnv.New64a()
	h.Write([]byte("company:posting:" + companyID))
	return int64(h.Sum64())
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrLockNotAvailable
}
