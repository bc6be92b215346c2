package agent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Store is the durability contract the queue runs on.
type Store interface {
	Append(event QueuedEvent) error
	Unacked(max int) []QueuedEvent
	MarkAcked(ids []string) error
	Depth() int
	Oldest() *time.Time
}

// Queue is the device outbox. Event ids are assigned before any I/O so
// a retried enqueue never produces a second id for the same capture.
type Queue struct {
	store Store
}

// NewQueue creates a queue over a store.
func NewQueue(store Store) *Queue {
	return &Queue{store: store}
}

// Enqueue captures an event locally and returns its id. The id doubles
// as the server-side idempotency key.
func (q *Queue) Enqueue(eventType string, payload json.RawMessage) (string, error) {
	event := QueuedEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.store.Append(event); err != nil {
		return "", err
	}
	return event.ID, nil
}

// NextBatch returns up to maxN unacked events in enqueue order.
func (q *Queue) NextBatch(maxN int) []QueuedEvent {
	if maxN <= 0 {
		maxN = 100
	}
	return q.store.Unacked(maxN)
}

// Ack marks events as settled server-side.
func (q *Queue) Ack(ids []string) error {
	return q.store.MarkAcked(ids)
}

// Depth returns the number of events awaiting sync.
func (q *Queue) Depth() int {
	return q.store.Depth()
}

// Oldest returns the capture time of the oldest queued event.
func (q *Queue) Oldest() *time.Time {
	return q.store.Oldest()
}
