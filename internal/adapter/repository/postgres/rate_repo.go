package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailsync/ledger/internal/domain"
)

// RateRepository implements exchange rate persistence
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository creates a new rate repository
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

const rateColumns = `id, rate_date, rate_type, rate, note, created_at`

func scanRate(row pgx.Row) (*domain.ExchangeRate, error) {
	var r domain.ExchangeRate
	err := row.Scan(&r.ID, &r.RateDate, &r.Type, &r.Rate, &r.Note, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByDate retrieves the rate stored for an exact date and type
func (r *RateRepository) GetByDate(ctx context.Context, date time.Time, t domain.RateType) (*domain.ExchangeRate, error) {
	query := `SELECT ` + rateColumns + ` FROM exchange_rates WHERE rate_date = $1 AND rate_type = $2`

	rate, err := scanRate(r.pool.QueryRow(ctx, query, date, t))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMissingExchangeRate
	}
	return rate, err
}

// GetLatestBefore retrieves the most recent rate strictly before the date
func (r *RateRepository) GetLatestBefore(ctx context.Context, date time.Time, t domain.RateType) (*domain.ExchangeRate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM exchange_rates
		WHERE rate_date < $1 AND rate_type = $2
		ORDER BY rate_date DESC
		LIMIT 1
	`

	rate, err := scanRate(r.pool.QueryRow(ctx, query, date, t))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMissingExchangeRate
	}
	return rate, err
}

// Upsert stores the rate for a date and type, replacing any earlier quote
func (r *RateRepository) Upsert(ctx context.Context, rate *domain.ExchangeRate) error {
	query := `
		INSERT INTO exchange_rates (id, rate_date, rate_type, rate, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (rate_date, rate_type)
		DO UPDATE SET rate = EXCLUDED.rate, note = EXCLUDED.note
	`

	_, err := r.pool.Exec(ctx, query,
		rate.ID, rate.RateDate, rate.Type, rate.Rate, rate.Note, rate.CreatedAt)
	return err
}

// List retrieves rates within a date range, newest first
func (r *RateRepository) List(ctx context.Context, from, to time.Time, limit int) ([]*domain.ExchangeRate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM exchange_rates
		WHERE rate_date >= $1 AND rate_date <= $2
		ORDER BY rate_date DESC, rate_type
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []*domain.ExchangeRate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}
