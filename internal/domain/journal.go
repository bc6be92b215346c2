package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type JournalStatus string

const (
	JournalPosted   JournalStatus = "posted"
	JournalReversed JournalStatus = "reversed"
)

// Journal is a posted double-entry batch. Every journal balances per
// currency independently: the USD legs sum to zero and the LBP legs sum
// to zero, with any sub-tolerance residue absorbed by a rounding line.
type Journal struct {
	ID           string
	CompanyID    string
	DocumentID   *string
	No           string
	Status       JournalStatus
	PostingDate  time.Time
	ExchangeRate decimal.Decimal
	Memo         string
	ReversesID   *string
	Lines        []JournalLine
	CreatedAt    time.Time
}

// JournalLine is one leg of a journal. Exactly one of the four amount
// columns per currency is non-zero on a well-formed line.
type JournalLine struct {
	ID          string
	JournalID   string
	LineNo      int
	AccountID   string
	DebitUSD    decimal.Decimal
	CreditUSD   decimal.Decimal
	DebitLBP    decimal.Decimal
	CreditLBP   decimal.Decimal
	Memo        string
	CustomerID  *string
	SupplierID  *string
	WarehouseID *string
	ItemID      *string
}

// FormatJournalNo renders a journal number from the per-company
// sequence, e.g. JV-2026-000042.
func FormatJournalNo(year, n int) string {
	return fmt.Sprintf("JV-%d-%06d", year, n)
}

// Imbalance returns debit minus credit per currency across all lines.
func (j *Journal) Imbalance() (usd, lbp decimal.Decimal) {
	for _, l := range j.Lines {
		usd = usd.Add(l.DebitUSD).Sub(l.CreditUSD)
		lbp = lbp.Add(l.DebitLBP).Sub(l.CreditLBP)
	}
	return usd.Round(usdPlaces), lbp.Round(lbpPlaces)
}

// Balanced reports whether both currencies net to exactly zero.
func (j *Journal) Balanced() bool {
	usd, lbp := j.Imbalance()
	return usd.IsZero() && lbp.IsZero()
}
