// Package audit is the append-only log of delivery attempts. One record is
// written per attempt, regardless of outcome; records are never mutated or
// individually deleted.
package audit

import "time"

// Outcome classifies one delivery attempt.
type Outcome string

const (
	// OutcomeSuccess: the subscriber endpoint answered with a 2xx status.
	OutcomeSuccess Outcome = "Success"
	// OutcomeFailedAttempt: non-2xx status, transport error, or resolution
	// failure; the task remains eligible for retry.
	OutcomeFailedAttempt Outcome = "FailedAttempt"
	// OutcomeFailure: retries exhausted; ends the task's lifecycle.
	OutcomeFailure Outcome = "Failure"
)

// Terminal reports whether a record with this outcome ends the task.
func (o Outcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// Record is one immutable delivery attempt entry. TargetURL is snapshotted at
// attempt time; it is empty when the subscription could not be resolved.
// StatusCode is nil when no HTTP status was obtained (transport failure or
// resolution failure).
type Record struct {
	ID             int64          `json:"id"`
	TaskID         string         `json:"task_id"`
	SubscriptionID int64          `json:"subscription_id"`
	TargetURL      string         `json:"target_url"`
	Payload        map[string]any `json:"payload,omitempty"`
	AttemptNumber  int            `json:"attempt_number"`
	Outcome        Outcome        `json:"outcome"`
	StatusCode     *int           `json:"status_code,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
