package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// MappingRepository implements account role mapping persistence
type MappingRepository struct {
	pool *pgxpool.Pool
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(pool *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{pool: pool}
}

// ResolveRoles loads every mapped role of a company into a RoleSet.
// Missing roles are absent from the map and fail at lookup time.
func (r *MappingRepository) ResolveRoles(ctx context.Context, tx usecase.Transaction, companyID string) (domain.RoleSet, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT role, account_id FROM account_mappings WHERE company_id = $1`

	rows, err := pgxTx.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(domain.RoleSet)
	for rows.Next() {
		var role domain.Role
		var accountID string
		if err := rows.Scan(&role, &accountID); err != nil {
			return nil, err
		}
		set[role] = accountID
	}
	return set, rows.Err()
}

// Upsert binds a role to an account for a company
func (r *MappingRepository) Upsert(ctx context.Context, m *domain.AccountMapping) error {
	query := `
		INSERT INTO account_mappings (id, company_id, role, account_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, role)
		DO UPDATE SET account_id = EXCLUDED.account_id
	`

	_, err := r.pool.Exec(ctx, query, m.ID, m.CompanyID, m.Role, m.AccountID)
	return err
}

// List retrieves all role mappings of a company
func (r *MappingRepository) List(ctx context.Context, companyID string) ([]*domain.AccountMapping, error) {
	query := `
		SELECT id, company_id, role, account_id
		FROM account_mappings
		WHERE company_id = $1
		ORDER BY role
	`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []*domain.AccountMapping
	for rows.Next() {
		var m domain.AccountMapping
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.Role, &m.AccountID); err != nil {
			return nil, err
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}
