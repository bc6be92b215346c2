package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailsync/ledger/internal/domain"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SubmitBatchResponse carries per-event verdicts, index-aligned with the
// submitted batch.
type SubmitBatchResponse struct {
	Results []domain.SubmitResult `json:"results"`
}

// EventResponse represents an outbox event in API responses.
type EventResponse struct {
	ID            string     `json:"id"`
	ParentID      *string    `json:"parent_id,omitempty"`
	DeviceID      string     `json:"device_id"`
	CompanyID     string     `json:"company_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// EventFromDomain converts a domain event to a response.
func EventFromDomain(e *domain.Event) *EventResponse {
	return &EventResponse{
		ID:            e.ID,
		ParentID:      e.ParentID,
		DeviceID:      e.DeviceID,
		CompanyID:     e.CompanyID,
		Type:          string(e.Type),
		Status:        string(e.Status),
		AttemptCount:  e.AttemptCount,
		ErrorMessage:  e.ErrorMessage,
		NextAttemptAt: e.NextAttemptAt,
		CreatedAt:     e.CreatedAt,
		ProcessedAt:   e.ProcessedAt,
	}
}

// EventsFromDomain converts domain events to responses.
func EventsFromDomain(events []*domain.Event) []*EventResponse {
	result := make([]*EventResponse, len(events))
	for i, e := range events {
		result[i] = EventFromDomain(e)
	}
	return result
}

// DeviceResponse represents a device in API responses.
type DeviceResponse struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	Name        string     `json:"name"`
	Active      bool       `json:"active"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DeviceFromDomain converts a domain device to a response. The token
// hash never leaves the server.
func DeviceFromDomain(d *domain.Device) *DeviceResponse {
	return &DeviceResponse{
		ID:          d.ID,
		CompanyID:   d.CompanyID,
		Name:        d.Name,
		Active:      d.Active,
		LastSeenAt:  d.LastSeenAt,
		LastEventAt: d.LastEventAt,
		CreatedAt:   d.CreatedAt,
	}
}

// DevicesFromDomain converts domain devices to responses.
func DevicesFromDomain(devices []*domain.Device) []*DeviceResponse {
	result := make([]*DeviceResponse, len(devices))
	for i, d := range devices {
		result[i] = DeviceFromDomain(d)
	}
	return result
}

// RegisterDeviceResponse carries the one-time raw token.
type RegisterDeviceResponse struct {
	Device *DeviceResponse `json:"device"`
	Token  string          `json:"token"`
}

// RateResponse represents an exchange rate in API responses.
type RateResponse struct {
	ID       string          `json:"id"`
	RateDate string          `json:"rate_date"`
	Type     string          `json:"type"`
	Rate     decimal.Decimal `json:"rate"`
	Note     string          `json:"note,omitempty"`
}

// RateFromDomain converts a domain rate to a response.
func RateFromDomain(r *domain.ExchangeRate) *RateResponse {
	return &RateResponse{
		ID:       r.ID,
		RateDate: r.RateDate.Format("2006-01-02"),
		Type:     string(r.Type),
		Rate:     r.Rate,
		Note:     r.Note,
	}
}

// RatesFromDomain converts domain rates to responses.
func RatesFromDomain(rates []*domain.ExchangeRate) []*RateResponse {
	result := make([]*RateResponse, len(rates))
	for i, r := range rates {
		result[i] = RateFromDomain(r)
	}
	return result
}

// ResolvedRateResponse represents a resolved rate served to devices.
type ResolvedRateResponse struct {
	Rate     decimal.Decimal `json:"rate"`
	Type     string          `json:"type"`
	RateDate string          `json:"rate_date"`
	Source   string          `json:"source"`
}

// ResolvedRateFromDomain converts a resolved rate to a response.
func ResolvedRateFromDomain(r domain.ResolvedRate) ResolvedRateResponse {
	return ResolvedRateResponse{
		Rate:     r.Rate,
		Type:     string(r.Type),
		RateDate: r.RateDate.Format("2006-01-02"),
		Source:   string(r.Source),
	}
}

// PeriodLockResponse represents a period lock in API responses.
type PeriodLockResponse struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Locked    bool   `json:"locked"`
	Note      string `json:"note,omitempty"`
}

// PeriodLockFromDomain converts a domain period lock to a response.
func PeriodLockFromDomain(p *domain.PeriodLock) *PeriodLockResponse {
	return &PeriodLockResponse{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		StartDate: p.StartDate.Format("2006-01-02"),
		EndDate:   p.EndDate.Format("2006-01-02"),
		Locked:    p.Locked,
		Note:      p.Note,
	}
}

// PeriodLocksFromDomain converts domain period locks to responses.
func PeriodLocksFromDomain(locks []*domain.PeriodLock) []*PeriodLockResponse {
	result := make([]*PeriodLockResponse, len(locks))
	for i, p := range locks {
		result[i] = PeriodLockFromDomain(p)
	}
	return result
}

// JournalLineResponse represents one journal leg in API responses.
type JournalLineResponse struct {
	LineNo    int             `json:"line_no"`
	AccountID string          `json:"account_id"`
	DebitUSD  decimal.Decimal `json:"debit_usd"`
	CreditUSD decimal.Decimal `json:"credit_usd"`
	DebitLBP  decimal.Decimal `json:"debit_lbp"`
	CreditLBP decimal.Decimal `json:"credit_lbp"`
	Memo      string          `json:"memo,omitempty"`
}

// JournalResponse represents a journal in API responses.
type JournalResponse struct {
	ID           string                `json:"id"`
	CompanyID    string                `json:"company_id"`
	DocumentID   *string               `json:"document_id,omitempty"`
	No           string                `json:"journal_no"`
	Status       string                `json:"status"`
	PostingDate  string                `json:"posting_date"`
	ExchangeRate decimal.Decimal       `json:"exchange_rate"`
	Memo         string                `json:"memo,omitempty"`
	ReversesID   *string               `json:"reverses_id,omitempty"`
	Lines        []JournalLineResponse `json:"lines"`
}

// JournalFromDomain converts a domain journal to a response.
func JournalFromDomain(j *domain.Journal) *JournalResponse {
	lines := make([]JournalLineResponse, len(j.Lines))
	for i, l := range j.Lines {
		lines[i] = JournalLineResponse{
			LineNo:    l.LineNo,
			AccountID: l.AccountID,
			DebitUSD:  l.DebitUSD,
			CreditUSD: l.CreditUSD,
			DebitLBP:  l.DebitLBP,
			CreditLBP: l.CreditLBP,
			Memo:      l.Memo,
		}
	}
	return &JournalResponse{
		ID:           j.ID,
		CompanyID:    j.CompanyID,
		DocumentID:   j.DocumentID,
		No:           j.No,
		Status:       string(j.Status),
		PostingDate:  j.PostingDate.Format("2006-01-02"),
		ExchangeRate: j.ExchangeRate,
		Memo:         j.Memo,
		ReversesID:   j.ReversesID,
		Lines:        lines,
	}
}

// OutboxStatsResponse summarizes event counts by status.
type OutboxStatsResponse struct {
	Pending   int64 `json:"pending"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dead      int64 `json:"dead"`
}

// OutboxStatsFromDomain converts a status count map to a response.
func OutboxStatsFromDomain(counts map[domain.EventStatus]int64) *OutboxStatsResponse {
	return &OutboxStatsResponse{
		Pending:   counts[domain.EventPending],
		Processed: counts[domain.EventProcessed],
		Failed:    counts[domain.EventFailed],
		Dead:      counts[domain.EventDead],
	}
}
