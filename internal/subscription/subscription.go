// Package subscription owns the subscriber configuration records and the
// read-through cache the delivery pipeline resolves them from.
package subscription

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no subscription exists for the given ID.
var ErrNotFound = errors.New("subscription not found")

// Subscription is the delivery configuration for one registered subscriber.
// Secret and EventType are optional: an empty Secret disables signature
// verification, an empty EventType accepts every event type.
type Subscription struct {
	ID        int64     `json:"id"`
	TargetURL string    `json:"target_url"`
	Secret    string    `json:"secret,omitempty"`
	EventType string    `json:"event_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AcceptsEventType reports whether an event with the declared type passes this
// subscription's filter. A subscription without a filter accepts everything.
func (s Subscription) AcceptsEventType(eventType string) bool {
	return s.EventType == "" || s.EventType == eventType
}
