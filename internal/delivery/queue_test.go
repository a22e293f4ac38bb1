package delivery

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type fakePublisher struct {
	published [][]byte
	deferred  [][]byte
	delays    []time.Duration
	err       error
}

func (f *fakePublisher) Publish(topic string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	return nil
}

func (f *fakePublisher) DeferredPublish(topic string, delay time.Duration, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.delays = append(f.delays, delay)
	f.deferred = append(f.deferred, body)
	return nil
}

func TestEnqueueStartsAtAttemptOne(t *testing.T) {
	pub := &fakePublisher{}
	q := NewQueue(pub, "delivery_tasks")

	taskID, err := q.Enqueue(context.Background(), 42, map[string]any{"body": "hi"}, "order.created")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if taskID == "" {
		t.Fatal("Enqueue() returned empty task ID")
	}
	if len(pub.published) != 1 {
		t.Fatalf("got %d published messages, want 1", len(pub.published))
	}

	var task Task
	if err := json.Unmarshal(pub.published[0], &task); err != nil {
		t.Fatalf("unmarshal published task: %v", err)
	}
	if task.TaskID != taskID {
		t.Errorf("published task ID = %q, want %q", task.TaskID, taskID)
	}
	if task.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", task.Attempt)
	}
	if task.SubscriptionID != 42 {
		t.Errorf("subscription ID = %d, want 42", task.SubscriptionID)
	}
	if task.EventType != "order.created" {
		t.Errorf("event type = %q, want order.created", task.EventType)
	}
	if task.EnqueuedAt == "" {
		t.Error("enqueued_at should be set")
	}
}

func TestEnqueueGeneratesUniqueTaskIDs(t *testing.T) {
	pub := &fakePublisher{}
	q := NewQueue(pub, "delivery_tasks")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		taskID, err := q.Enqueue(context.Background(), 1, map[string]any{"body": "hi"}, "")
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		if seen[taskID] {
			t.Fatalf("duplicate task ID %q", taskID)
		}
		seen[taskID] = true
	}
}

func TestRescheduleIncrementsAttemptAndKeepsID(t *testing.T) {
	pub := &fakePublisher{}
	q := NewQueue(pub, "delivery_tasks")

	orig := Task{TaskID: "t1", SubscriptionID: 1, Payload: map[string]any{"body": "hi"}, Attempt: 2}
	if err := q.Reschedule(context.Background(), orig, 4*time.Second); err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}

	if len(pub.deferred) != 1 {
		t.Fatalf("got %d deferred messages, want 1", len(pub.deferred))
	}
	if pub.delays[0] != 4*time.Second {
		t.Errorf("delay = %v, want 4s", pub.delays[0])
	}

	var task Task
	if err := json.Unmarshal(pub.deferred[0], &task); err != nil {
		t.Fatalf("unmarshal deferred task: %v", err)
	}
	if task.TaskID != "t1" {
		t.Errorf("task ID = %q, want t1", task.TaskID)
	}
	if task.Attempt != 3 {
		t.Errorf("attempt = %d, want 3", task.Attempt)
	}
}

func TestEnqueuePublishError(t *testing.T) {
	pub := &fakePublisher{err: errString("nsqd unreachable")}
	q := NewQueue(pub, "delivery_tasks")

	if _, err := q.Enqueue(context.Background(), 1, map[string]any{"body": "hi"}, ""); err == nil {
		t.Error("Enqueue() expected error when publish fails")
	}
}
