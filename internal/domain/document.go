package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DocumentType string

const (
	DocInvoice         DocumentType = "invoice"
	DocReturn          DocumentType = "return"
	DocReceipt         DocumentType = "receipt"
	DocPurchaseInvoice DocumentType = "purchase_invoice"
)

type DocumentStatus string

const (
	DocStatusDraft    DocumentStatus = "draft"
	DocStatusPosted   DocumentStatus = "posted"
	DocStatusCanceled DocumentStatus = "canceled"
)

// Document is the canonical accounting document produced from an event.
// The exchange rate and both currency totals are frozen at conversion time
// so later rate changes never alter posted history.
type Document struct {
	ID           string
	EventID      string
	CompanyID    string
	Type         DocumentType
	No           string
	Status       DocumentStatus
	DocumentDate time.Time
	ExchangeRate decimal.Decimal
	CustomerID   *string
	SupplierID   *string
	WarehouseID  *string
	RefDocID     *string
	TotalUSD     decimal.Decimal
	TotalLBP     decimal.Decimal
	PaidUSD      decimal.Decimal
	PaidLBP      decimal.Decimal
	CreditUSD    decimal.Decimal
	CreditLBP    decimal.Decimal
	JournalID    *string
	CreatedAt    time.Time
	PostedAt     *time.Time
}

type DocumentLine struct {
	ID           string
	DocumentID   string
	LineNo       int
	ItemID       string
	Qty          decimal.Decimal
	UnitPriceUSD decimal.Decimal
	UnitPriceLBP decimal.Decimal
	TotalUSD     decimal.Decimal
	TotalLBP     decimal.Decimal
	CostUSD      decimal.Decimal
	CostLBP      decimal.Decimal
}

type DocumentPayment struct {
	ID         string
	DocumentID string
	Method     string
	AmountUSD  decimal.Decimal
	AmountLBP  decimal.Decimal
}

type DocumentTax struct {
	ID         string
	DocumentID string
	TaxCodeID  string
	BaseUSD    decimal.Decimal
	BaseLBP    decimal.Decimal
	TaxUSD     decimal.Decimal
	TaxLBP     decimal.Decimal
	TaxDate    time.Time
}

// FormatDocumentNo renders a document number from the per-company
// sequence, e.g. INV-2026-000042.
func FormatDocumentNo(t DocumentType, year, n int) string {
	prefix := "DOC"
	switch t {
	case DocInvoice:
		prefix = "INV"
	case DocReturn:
		prefix = "RET"
	case DocReceipt:
		prefix = "GRN"
	case DocPurchaseInvoice:
		prefix = "PINV"
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, n)
}

// OnCredit reports whether any part of the document total remains open
// against the counterparty account.
func (d *Document) OnCredit() bool {
	return d.CreditUSD.IsPositive() || d.CreditLBP.IsPositive()
}
