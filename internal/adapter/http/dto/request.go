package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// SubmitBatchRequest is a device outbox flush: an ordered batch of
// locally queued events.
type SubmitBatchRequest struct {
	Events []SubmitEventItem `json:"events"`
}

// SubmitEventItem is one event of a batch. The id is the device-assigned
// idempotency key.
type SubmitEventItem struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SubmitBatchRequest) ToUseCaseInput() []usecase.SubmitEventInput {
	batch := make([]usecase.SubmitEventInput, len(r.Events))
	for i, e := range r.Events {
		in := usecase.SubmitEventInput{
			EventID: e.ID,
			Type:    domain.EventType(e.Type),
			Payload: e.Payload,
		}
		if e.CreatedAt != nil {
			in.CreatedAt = *e.CreatedAt
		}
		batch[i] = in
	}
	return batch
}

// HeartbeatRequest is a device liveness report.
type HeartbeatRequest struct {
	QueueDepth   int        `json:"queue_depth"`
	OldestQueued *time.Time `json:"oldest_queued,omitempty"`
	AppVersion   string     `json:"app_version"`
}

// ToDomain converts to the domain heartbeat for the calling device.
func (r *HeartbeatRequest) ToDomain(deviceID string, at time.Time) *domain.Heartbeat {
	return &domain.Heartbeat{
		DeviceID:     deviceID,
		QueueDepth:   r.QueueDepth,
		OldestQueued: r.OldestQueued,
		AppVersion:   r.AppVersion,
		SentAt:       at,
	}
}

// RequeueRequest represents a request to requeue a failed or dead event.
type RequeueRequest struct {
	ResetHistory bool `json:"reset_history"`
}

// RegisterDeviceRequest represents a request to register a device.
type RegisterDeviceRequest struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

// SetRateRequest represents a request to store an exchange rate.
type SetRateRequest struct {
	RateDate string          `json:"rate_date"`
	Type     string          `json:"type"`
	Rate     decimal.Decimal `json:"rate"`
	Note     string          `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SetRateRequest) ToUseCaseInput() (usecase.SetRateInput, error) {
	date, err := time.Parse("2006-01-02", r.RateDate)
	if err != nil {
		return usecase.SetRateInput{}, err
	}
	return usecase.SetRateInput{
		RateDate: date,
		Type:     domain.RateType(r.Type),
		Rate:     r.Rate,
		Note:     r.Note,
	}, nil
}

// SetPeriodLockRequest represents a request to lock or unlock a period.
type SetPeriodLockRequest struct {
	CompanyID string `json:"company_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Locked    bool   `json:"locked"`
	Note      string `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SetPeriodLockRequest) ToUseCaseInput() (usecase.SetLockInput, error) {
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return usecase.SetLockInput{}, err
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return usecase.SetLockInput{}, err
	}
	return usecase.SetLockInput{
		CompanyID: r.CompanyID,
		StartDate: start,
		EndDate:   end,
		Locked:    r.Locked,
		Note:      r.Note,
	}, nil
}
