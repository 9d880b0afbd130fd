// Package notify broadcasts normalized webhook events to connected dashboard
// subscribers. Delivery is best-effort: no acknowledgment, no retry, no
// persistence of missed messages. A subscriber that connects late simply does
// not see past events.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Message is the normalized broadcast shape.
type Message struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type Notifier interface {
	// Broadcast publishes msg to all current subscribers. Errors are for the
	// caller's logging only; a failed broadcast never rolls anything back.
	Broadcast(ctx context.Context, msg Message) error
}
