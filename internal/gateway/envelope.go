package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"webhook-gateway/internal/event"
)

// Supported provider names. These appear in the webhook URL path and in the
// event store's provider column.
const (
	ProviderStripe = "stripe"
	ProviderTelnyx = "telnyx"
)

// stripeEnvelope is Stripe's outer event shape: {id, type, created, data:{object}}.
type stripeEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// telnyxEnvelope is Telnyx's outer event shape: {data:{id, event_type, occurred_at, payload}}.
type telnyxEnvelope struct {
	Data struct {
		ID         string          `json:"id"`
		EventType  string          `json:"event_type"`
		OccurredAt time.Time       `json:"occurred_at"`
		Payload    json.RawMessage `json:"payload"`
	} `json:"data"`
}

// ParseEnvelope normalizes a provider's JSON envelope into a ProviderEvent.
// Handlers get the inner payload; the full envelope is retained for audit.
func ParseEnvelope(provider string, body []byte) (event.ProviderEvent, error) {
	switch provider {
	case ProviderStripe:
		var env stripeEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return event.ProviderEvent{}, fmt.Errorf("stripe envelope: %w", err)
		}
		if env.ID == "" || env.Type == "" {
			return event.ProviderEvent{}, fmt.Errorf("stripe envelope: missing id or type")
		}
		occurred := time.Time{}
		if env.Created > 0 {
			occurred = time.Unix(env.Created, 0).UTC()
		}
		return event.ProviderEvent{
			Provider:   provider,
			EventID:    env.ID,
			EventType:  env.Type,
			OccurredAt: occurred,
			Payload:    env.Data.Object,
			Raw:        json.RawMessage(body),
		}, nil

	case ProviderTelnyx:
		var env telnyxEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return event.ProviderEvent{}, fmt.Errorf("telnyx envelope: %w", err)
		}
		if env.Data.ID == "" || env.Data.EventType == "" {
			return event.ProviderEvent{}, fmt.Errorf("telnyx envelope: missing data.id or data.event_type")
		}
		return event.ProviderEvent{
			Provider:   provider,
			EventID:    env.Data.ID,
			EventType:  env.Data.EventType,
			OccurredAt: env.Data.OccurredAt,
			Payload:    env.Data.Payload,
			Raw:        json.RawMessage(body),
		}, nil

	default:
		return event.ProviderEvent{}, fmt.Errorf("unknown provider %q", provider)
	}
}

// SignatureHeader returns the provider-specific signature header name.
func SignatureHeader(provider string) string {
	switch provider {
	case ProviderStripe:
		return "Stripe-Signature"
	case ProviderTelnyx:
		return "Telnyx-Signature"
	default:
		return ""
	}
}

// KnownProvider reports whether the path segment names a supported provider.
func KnownProvider(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderStripe, ProviderTelnyx:
		return true
	default:
		return false
	}
}
