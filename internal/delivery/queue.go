package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wharfhook/wharfhook/internal/tracing"
)

// publisher is the slice of *nsq.Producer the queue uses.
type publisher interface {
	Publish(topic string, body []byte) error
	DeferredPublish(topic string, delay time.Duration, body []byte) error
}

// Queue admits delivery tasks to the broker. Enqueue is asynchronous from
// execution: the caller gets a task ID back immediately and never waits on
// delivery.
type Queue struct {
	prod  publisher
	topic string
}

// NewQueue wraps an NSQ producer publishing to the given topic.
func NewQueue(prod publisher, topic string) *Queue {
	return &Queue{prod: prod, topic: topic}
}

// Enqueue creates a task with a fresh globally-unique ID at attempt 1 and
// publishes it. It returns the task ID; delivery happens asynchronously.
func (q *Queue) Enqueue(ctx context.Context, subscriptionID int64, payload map[string]any, eventType string) (string, error) {
	t := Task{
		TaskID:         uuid.NewString(),
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		Payload:        payload,
		Attempt:        1,
		EnqueuedAt:     time.Now().UTC().Format(time.RFC3339),
		TraceHeaders:   tracing.PropagateTraceToNSQ(ctx),
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}
	if err := q.prod.Publish(q.topic, b); err != nil {
		return "", fmt.Errorf("publish task: %w", err)
	}
	return t.TaskID, nil
}

// Reschedule re-submits the task under the same ID with the attempt number
// incremented, via a deferred publish. The broker holds the message for at
// least delay before it becomes eligible; under load it may run later.
func (q *Queue) Reschedule(ctx context.Context, t Task, delay time.Duration) error {
	t.Attempt++
	t.TraceHeaders = tracing.PropagateTraceToNSQ(ctx)
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.prod.DeferredPublish(q.topic, delay, b); err != nil {
		return fmt.Errorf("deferred publish task: %w", err)
	}
	return nil
}
