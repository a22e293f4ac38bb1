// Package delivery owns the asynchronous pipeline: the task queue and the
// worker executing attempts against subscriber endpoints.
package delivery

// Task is the queue wire format for one pending delivery attempt. A task is
// ephemeral: it lives on the broker only, and its identity is recoverable from
// the audit log. Attempt starts at 1 and is incremented on every reschedule.
type Task struct {
	TaskID         string            `json:"task_id"`
	SubscriptionID int64             `json:"subscription_id"`
	EventType      string            `json:"event_type,omitempty"`
	Payload        map[string]any    `json:"payload"`
	Attempt        int               `json:"attempt"`
	EnqueuedAt     string            `json:"enqueued_at"` // RFC3339
	TraceHeaders   map[string]string `json:"trace_headers,omitempty"`
}
