package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailsync/ledger/internal/domain"
)

// UpdateRepository implements the append-only device pull feed
type UpdateRepository struct {
	pool *pgxpool.Pool
}

// NewUpdateRepository creates a new update repository
func NewUpdateRepository(pool *pgxpool.Pool) *UpdateRepository {
	return &UpdateRepository{pool: pool}
}

// Append adds one entry to the feed and returns its sequence number.
// Sequence numbers come from a bigserial column so ordering is total.
func (r *UpdateRepository) Append(ctx context.Context, kind domain.UpdateKind, refID string, body []byte) (int64, error) {
	query := `
		INSERT INTO updates (kind, ref_id, body, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING seq
	`

	var seq int64
	err := r.pool.QueryRow(ctx, query, kind, refID, body).Scan(&seq)
	return seq, err
}

// ListSince retrieves feed entries strictly after the cursor, ascending
func (r *UpdateRepository) ListSince(ctx context.Context, afterSeq int64, limit int) ([]domain.Update, error) {
	query := `
		SELECT seq, kind, ref_id, body, created_at
		FROM updates
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []domain.Update
	for rows.Next() {
		var u domain.Update
		if err := rows.Scan(&u.Seq, &u.Kind, &u.RefID, &u.Body, &u.CreatedAt); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}
