package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer submits event processing tasks to the queue. It implements
// usecase.TaskEnqueuer.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates an Enqueuer backed by an asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueProcess schedules a processing attempt for the event, after a
// delay when one is given.
func (e *Enqueuer) EnqueueProcess(ctx context.Context, eventID string, delay time.Duration) error {
	task, err := NewProcessEventTask(eventID)
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.Queue(QueueDefault)}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	_, err = e.client.EnqueueContext(ctx, task, opts...)
	return err
}

// Close releases client resources.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
