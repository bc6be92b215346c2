package domain

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the business action a device recorded.
type EventType string

const (
	EventSaleCompleted    EventType = "sale.completed"
	EventSaleReturned     EventType = "sale.returned"
	EventPurchaseReceived EventType = "purchase.received"
	EventPurchaseInvoice  EventType = "purchase.invoice"
)

// KnownEventType reports whether t is one of the supported event types.
func KnownEventType(t EventType) bool {
	switch t {
	case EventSaleCompleted, EventSaleReturned, EventPurchaseReceived, EventPurchaseInvoice:
		return true
	}
	return false
}

// EventStatus is the server-side lifecycle state of an outbox event.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventProcessed EventStatus = "processed"
	EventFailed    EventStatus = "failed"
	EventDead      EventStatus = "dead"
)

// ValidEventStatus reports whether s is a recognized status value.
func ValidEventStatus(s EventStatus) bool {
	switch s {
	case EventPending, EventProcessed, EventFailed, EventDead:
		return true
	}
	return false
}

// Entity names one of the two legal entities a mixed cart can split into.
type Entity string

const (
	EntityOfficial   Entity = "official"
	EntityUnofficial Entity = "unofficial"
)

// Event is a device-originated, idempotency-keyed record of a completed
// local action. The ID is assigned by the device before any network
// interaction and is the permanent idempotency key.
type Event struct {
	ID            string
	ParentID      *string
	DeviceID      string
	CompanyID     string
	Type          EventType
	Payload       json.RawMessage
	Status        EventStatus
	AttemptCount  int
	ErrorMessage  *string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Terminal reports whether the event has reached a state the device can
// stop resubmitting: processed, or dead pending operator action.
func (e *Event) Terminal() bool {
	return e.Status == EventProcessed || e.Status == EventDead
}

// SubEventID derives the deterministic idempotency key for the per-entity
// half of a mixed-entity sale. Resubmitting the parent always re-derives
// the same two keys.
func SubEventID(parentID string, entity Entity) string {
	return fmt.Sprintf("%s:sale:%s", parentID, entity)
}

const (
	retryBaseSeconds = 1
	retryCapSeconds  = 300
)

// NextRetryAt computes the retry schedule for a failed attempt: capped
// exponential backoff plus a deterministic per-event jitter so a fleet of
// failed events does not retry in lockstep.
func NextRetryAt(eventID string, attempt int, now time.Time) time.Time {
	if attempt < 1 {
		attempt = 1
	}
	delay := retryCapSeconds
	if attempt-1 < 30 {
		d := retryBaseSeconds << (attempt - 1)
		if d < retryCapSeconds {
			delay = d
		}
	}

	window := delay / 5
	if window < 1 {
		window = 1
	}
	if window > 30 {
		window = 30
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d", eventID, attempt)))
	jitter := int(binary.BigEndian.Uint32(sum[:4]) % uint32(window+1))

	total := delay + jitter
	if total > retryCapSeconds {
		total = retryCapSeconds
	}
	return now.Add(time.Duration(total) * time.Second)
}

// EventFilter narrows outbox listings.
type EventFilter struct {
	Status    EventStatus
	DeviceID  string
	CompanyID string
	Type      EventType
	Limit     int
	Offset    int
}

// SubmitResult is the per-event outcome returned to a submitting device.
// Devices must retry only entries whose status is not processed. For a
// split sale the parent entry carries one SubEvents entry per entity.
type SubmitResult struct {
	EventID   string         `json:"event_id"`
	Status    EventStatus    `json:"status"`
	Error     string         `json:"error,omitempty"`
	SubEvents []SubmitResult `json:"sub_events,omitempty"`
}

// AggregateSplitResult derives the device-facing verdict of a split sale
// from its child events. The parent row is processed once the fan-out is
// committed, but the device must not stop resubmitting until every
// entity's posting reached a terminal state, so the parent verdict is
// the worst child state: dead beats a permanently failed child, which
// beats pending, which beats processed.
func AggregateSplitResult(parentID string, children []*Event) SubmitResult {
	res := SubmitResult{EventID: parentID, Status: EventProcessed}
	rank := func(s EventStatus) int {
		switch s {
		case EventDead:
			return 3
		case EventFailed:
			return 2
		case EventPending:
			return 1
		}
		return 0
	}
	for _, c := range children {
		sub := SubmitResult{EventID: c.ID, Status: c.Status}
		if c.ErrorMessage != nil {
			sub.Error = *c.ErrorMessage
		}
		status := c.Status
		if status == EventFailed && c.NextAttemptAt != nil {
			// A scheduled retry is still in flight.
			status = EventPending
			sub.Status = EventPending
		}
		res.SubEvents = append(res.SubEvents, sub)
		if rank(status) > rank(res.Status) {
			res.Status = status
			res.Error = sub.Error
		}
	}
	return res
}
