package event

import (
	"encoding/json"
	"time"
)

// InboundEvent is the durable record of a provider webhook delivery.
//
// Invariants:
// - (provider, provider_event_id) is unique; the provider's event ID uniqueness is trusted.
// - Processed, once true, is never reset. That flag is what guarantees
//   at-most-once side-effect execution per provider event ID.
// - Rows are never deleted; they are retained for audit.
type InboundEvent struct {
	ID              string     `json:"id" db:"id"`
	Provider        string     `json:"provider" db:"provider"`
	ProviderEventID string     `json:"provider_event_id" db:"provider_event_id"`
	EventType       string     `json:"event_type" db:"event_type"`
	RawPayload      []byte     `json:"raw_payload" db:"raw_payload"`
	ReceivedAt      time.Time  `json:"received_at" db:"received_at"`
	Processed       bool       `json:"processed" db:"processed"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// ProviderEvent is an inbound event normalized out of a provider's envelope.
// Payload is the provider's data.object (Stripe) or payload (Telnyx); handlers
// decode it into the precise type for their event type.
type ProviderEvent struct {
	Provider   string
	EventID    string
	EventType  string
	OccurredAt time.Time
	Payload    json.RawMessage
	Raw        json.RawMessage
}

// Stats summarizes the event log for the operational dashboard.
type Stats struct {
	Total       int     `json:"total"`
	Processed   int     `json:"processed"`
	Pending     int     `json:"pending"`
	Today       int     `json:"today"`
	SuccessRate float64 `json:"success_rate"`
}
