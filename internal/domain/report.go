package domain

import "github.com/shopspring/decimal"

// ConsistencyReport is the result of a full-ledger balance check for one
// company. A healthy ledger has zero imbalance in both currencies and no
// broken journals.
type ConsistencyReport struct {
	CompanyID      string          `json:"company_id"`
	JournalCount   int64           `json:"journal_count"`
	ImbalanceUSD   decimal.Decimal `json:"imbalance_usd"`
	ImbalanceLBP   decimal.Decimal `json:"imbalance_lbp"`
	BrokenJournals []string        `json:"broken_journals,omitempty"`
}

// Consistent reports whether the ledger nets to zero per currency with no
// individually imbalanced journals.
func (r *ConsistencyReport) Consistent() bool {
	return r.ImbalanceUSD.IsZero() && r.ImbalanceLBP.IsZero() && len(r.BrokenJournals) == 0
}
