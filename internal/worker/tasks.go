package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue name for event processing tasks.
	QueueDefault = "default"

	// TaskTypeProcessEvent is the task type for a single processing attempt.
	TaskTypeProcessEvent = "event:process"
	// TaskTypeSweepOutbox is the task type for the periodic retry sweep.
	TaskTypeSweepOutbox = "outbox:sweep"
)

// ProcessEventPayload identifies the event to process.
type ProcessEventPayload struct {
	EventID string `json:"event_id"`
}

// NewProcessEventTask constructs a processing task for one event.
func NewProcessEventTask(eventID string) (*asynq.Task, error) {
	data, err := json.Marshal(ProcessEventPayload{EventID: eventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProcessEvent, data), nil
}

// NewSweepOutboxTask constructs the periodic sweep task. It carries no
// payload.
func NewSweepOutboxTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSweepOutbox, nil)
}
