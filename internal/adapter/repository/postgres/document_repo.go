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

// DocumentRepository implements accounting document persistence
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

const documentColumns = `id, event_id, company_id, type, doc_no, status, document_date,
	exchange_rate, customer_id, supplier_id, warehouse_id, ref_doc_id,
	total_usd, total_lbp, paid_usd, paid_lbp, credit_usd, credit_lbp,
	journal_id, created_at, posted_at`

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	err := row.Scan(
		&d.ID,
		&d.EventID,
		&d.CompanyID,
		&d.Type,
		&d.No,
		&d.Status,
		&d.DocumentDate,
		&d.ExchangeRate,
		&d.CustomerID,
		&d.SupplierID,
		&d.WarehouseID,
		&d.RefDocID,
		&d.TotalUSD,
		&d.TotalLBP,
		&d.PaidUSD,
		&d.PaidLBP,
		&d.CreditUSD,
		&d.CreditLBP,
		&d.JournalID,
		&d.CreatedAt,
		&d.PostedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateTx inserts the document with its lines, payments and taxes inside
// the transaction.
func (r *DocumentRepository) CreateTx(ctx context.Context, tx usecase.Transaction, doc *domain.Document, lines []domain.DocumentLine, payments []domain.DocumentPayment, taxes []domain.DocumentTax) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	docQuery := `
		INSERT INTO documents (id, event_id, company_id, type, doc_no, status, document_date,
			exchange_rate, customer_id, supplier_id, warehouse_id, ref_doc_id,
			total_usd, total_lbp, paid_usd, paid_lbp, credit_usd, credit_lbp,
			journal_id, created_at, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err = pgxTx.Exec(ctx, docQuery,
		doc.ID, doc.EventID, doc.CompanyID, doc.Type, doc.No, doc.Status, doc.DocumentDate,
		doc.ExchangeRate, doc.CustomerID, doc.SupplierID, doc.WarehouseID, doc.RefDocID,
		doc.TotalUSD, doc.TotalLBP, doc.PaidUSD, doc.PaidLBP, doc.CreditUSD, doc.CreditLBP,
		doc.JournalID, doc.CreatedAt, doc.PostedAt,
	)
	if err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO document_lines (id, document_id, line_no, item_id, qty,
			unit_price_usd, unit_price_lbp, total_usd, total_lbp, cost_usd, cost_lbp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, l := range lines {
		_, err = pgxTx.Exec(ctx, lineQuery,
			l.ID, doc.ID, l.LineNo, l.ItemID, l.Qty,
			l.UnitPriceUSD, l.UnitPriceLBP, l.TotalUSD, l.TotalLBP, l.CostUSD, l.CostLBP,
		)
		if err != nil {
			return err
		}
	}

	paymentQuery := `
		INSERT INTO document_payments (id, document_id, method, amount_usd, amount_lbp)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, p := range payments {
		_, err = pgxTx.Exec(ctx, paymentQuery, p.ID, doc.ID, p.Method, p.AmountUSD, p.AmountLBP)
		if err != nil {
			return err
		}
	}

	taxQuery := `
		INSERT INTO document_taxes (id, document_id, tax_code_id,
			base_usd, base_lbp, tax_usd, tax_lbp, tax_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, t := range taxes {
		_, err = pgxTx.Exec(ctx, taxQuery,
			t.ID, doc.ID, t.TaxCodeID, t.BaseUSD, t.BaseLBP, t.TaxUSD, t.TaxLBP, t.TaxDate,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, err
}

// GetByEventID retrieves the document produced from an event
func (r *DocumentRepository) GetByEventID(ctx context.Context, eventID string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE event_id = $1`

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, err
}

// NextDocumentNo advances the per-company, per-type, per-year counter.
// The UPDATE takes a row lock, so two concurrent postings can never be
// handed the same number and aborted sequences never leave gaps beyond
// the aborted transaction itself.
func (r *DocumentRepository) NextDocumentNo(ctx context.Context, tx usecase.Transaction, companyID string, docType domain.DocumentType, year int) (string, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO document_sequences (company_id, doc_type, year, last_no)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (company_id, doc_type, year)
		DO UPDATE SET last_no = document_sequences.last_no + 1
		RETURNING last_no
	`

	var n int
	if err := pgxTx.QueryRow(ctx, query, companyID, docType, year).Scan(&n); err != nil {
		return "", err
	}

	return domain.FormatDocumentNo(docType, year, n), nil
}

// MarkPosted links the document to its journal and stamps the posting.
func (r *DocumentRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id, journalID string, at time.Time) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET status = $2, journal_id = $3, posted_at = $4
		WHERE id = $1
	`

	tag, err := pgxTx.Exec(ctx, query, id, domain.DocStatusPosted, journalID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
