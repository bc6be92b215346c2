package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// PeriodRepository implements period lock persistence
type PeriodRepository struct {
	pool *pgxpool.Pool
}

// NewPeriodRepository creates a new period repository
func NewPeriodRepository(pool *pgxpool.Pool) *PeriodRepository {
	return &PeriodRepository{pool: pool}
}

const periodColumns = `id, company_id, start_date, end_date, locked, note, created_at`

func scanPeriod(row pgx.Row) (*domain.PeriodLock, error) {
	var p domain.PeriodLock
	err := row.Scan(&p.ID, &p.CompanyID, &p.StartDate, &p.EndDate, &p.Locked, &p.Note, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindCovering returns the lock covering the posting date, or nil. The
// read happens inside the posting transaction so a lock created
// concurrently cannot slip past a posting already under way.
func (r *PeriodRepository) FindCovering(ctx context.Context, tx usecase.Transaction, companyID string, date time.Time) (*domain.PeriodLock, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + periodColumns + `
		FROM period_locks
		WHERE company_id = $1 AND locked AND start_date <= $2 AND end_date >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	lock, err := scanPeriod(pgxTx.QueryRow(ctx, query, companyID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return lock, err
}

// Upsert stores or replaces a period lock for its exact date range
func (r *PeriodRepository) Upsert(ctx context.Context, lock *domain.PeriodLock) error {
	query := `
		INSERT INTO period_locks (id, company_id, start_date, end_date, locked, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, start_date, end_date)
		DO UPDATE SET locked = EXCLUDED.locked, note = EXCLUDED.note
	`

	_, err := r.pool.Exec(ctx, query,
		lock.ID, lock.CompanyID, lock.StartDate, lock.EndDate, lock.Locked, lock.Note, lock.CreatedAt)
	return err
}

// List retrieves all period locks of a company, newest range first
func (r *PeriodRepository) List(ctx context.Context, companyID string) ([]*domain.PeriodLock, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM period_locks
		WHERE company_id = $1
		ORDER BY start_date DESC
	`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []*domain.PeriodLock
	for rows.Next() {
		lock, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}
