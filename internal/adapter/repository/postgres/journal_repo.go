package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// JournalRepository implements journal persistence
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

const journalColumns = `id, company_id, document_id, journal_no, status, posting_date,
	exchange_rate, memo, reverses_id, created_at`

func scanJournal(row pgx.Row) (*domain.Journal, error) {
	var j domain.Journal
	err := row.Scan(
		&j.ID,
		&j.CompanyID,
		&j.DocumentID,
		&j.No,
		&j.Status,
		&j.PostingDate,
		&j.ExchangeRate,
		&j.Memo,
		&j.ReversesID,
		&j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateTx inserts the journal and all lines inside the transaction.
func (r *JournalRepository) CreateTx(ctx context.Context, tx usecase.Transaction, journal *domain.Journal) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	journalQuery := `
		INSERT INTO journals (id, company_id, document_id, journal_no, status, posting_date,
			exchange_rate, memo, reverses_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = pgxTx.Exec(ctx, journalQuery,
		journal.ID,
		journal.CompanyID,
		journal.DocumentID,
		journal.No,
		journal.Status,
		journal.PostingDate,
		journal.ExchangeRate,
		journal.Memo,
		journal.ReversesID,
		journal.CreatedAt,
	)
	if err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO journal_lines (id, journal_id, line_no, account_id,
			debit_usd, credit_usd, debit_lbp, credit_lbp,
			memo, customer_id, supplier_id, warehouse_id, item_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for _, l := range journal.Lines {
		_, err = pgxTx.Exec(ctx, lineQuery,
			l.ID, journal.ID, l.LineNo, l.AccountID,
			l.DebitUSD, l.CreditUSD, l.DebitLBP, l.CreditLBP,
			l.Memo, l.CustomerID, l.SupplierID, l.WarehouseID, l.ItemID,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves a journal with its lines
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*domain.Journal, error) {
	query := `SELECT ` + journalColumns + ` FROM journals WHERE id = $1`

	journal, err := scanJournal(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJournalNotFound
	}
	if err != nil {
		return nil, err
	}

	journal.Lines, err = r.loadLines(ctx, id)
	return journal, err
}

// GetByDocumentID retrieves the journal posted for a document
func (r *JournalRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.Journal, error) {
	query := `SELECT ` + journalColumns + ` FROM journals WHERE document_id = $1`

	journal, err := scanJournal(r.pool.QueryRow(ctx, query, documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJournalNotFound
	}
	if err != nil {
		return nil, err
	}

	journal.Lines, err = r.loadLines(ctx, journal.ID)
	return journal, err
}

func (r *JournalRepository) loadLines(ctx context.Context, journalID string) ([]domain.JournalLine, error) {
	query := `
		SELECT id, journal_id, line_no, account_id,
		       debit_usd, credit_usd, debit_lbp, credit_lbp,
		       memo, customer_id, supplier_id, warehouse_id, item_id
		FROM journal_lines
		WHERE journal_id = $1
		ORDER BY line_no
	`

	rows, err := r.pool.Query(ctx, query, journalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.JournalLine
	for rows.Next() {
		var l domain.JournalLine
		err := rows.Scan(
			&l.ID, &l.JournalID, &l.LineNo, &l.AccountID,
			&l.DebitUSD, &l.CreditUSD, &l.DebitLBP, &l.CreditLBP,
			&l.Memo, &l.CustomerID, &l.SupplierID, &l.WarehouseID, &l.ItemID,
		)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// NextJournalNo advances the per-company, per-year journal counter.
func (r *JournalRepository) NextJournalNo(ctx context.Context, tx usecase.Transaction, companyID string, year int) (string, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO journal_sequences (company_id, year, last_no)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, year)
		DO UPDATE SET last_no = journal_sequences.last_no + 1
		RETURNING last_no
	`

	var n int
	if err := pgxTx.QueryRow(ctx, query, companyID, year).Scan(&n); err != nil {
		return "", err
	}

	return domain.FormatJournalNo(year, n), nil
}

// MarkReversed links a posted journal to its reversal.
func (r *JournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id, reversalID string) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE journals
		SET status = $2, reversed_by = $3
		WHERE id = $1 AND status = $4
	`

	tag, err := pgxTx.Exec(ctx, query, id, domain.JournalReversed, reversalID, domain.JournalPosted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJournalNotFound
	}
	return nil
}

// CheckConsistency verifies the whole posted ledger of a company nets to
// zero per currency, and flags individually imbalanced journals.
func (r *JournalRepository) CheckConsistency(ctx context.Context, companyID string) (*domain.ConsistencyReport, error) {
	report := &domain.ConsistencyReport{CompanyID: companyID}

	totalQuery := `
		SELECT COUNT(DISTINCT j.id),
		       COALESCE(SUM(l.debit_usd - l.credit_usd), 0),
		       COALESCE(SUM(l.debit_lbp - l.credit_lbp), 0)
		FROM journals j
		JOIN journal_lines l ON l.journal_id = j.id
		WHERE j.company_id = $1
	`

	err := r.pool.QueryRow(ctx, totalQuery, companyID).Scan(
		&report.JournalCount,
		&report.ImbalanceUSD,
		&report.ImbalanceLBP,
	)
	if err != nil {
		return nil, err
	}

	brokenQuery := `
		SELECT j.id
		FROM journals j
		JOIN journal_lines l ON l.journal_id = j.id
		WHERE j.company_id = $1
		GROUP BY j.id
		HAVING SUM(l.debit_usd - l.credit_usd) <> 0
		    OR SUM(l.debit_lbp - l.credit_lbp) <> 0
		ORDER BY j.id
	`

	rows, err := r.pool.Query(ctx, brokenQuery, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		report.BrokenJournals = append(report.BrokenJournals, id)
	}
	return report, rows.Err()
}
