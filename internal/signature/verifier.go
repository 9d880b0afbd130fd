// Package signature authenticates inbound webhook payloads against each
// provider's signing scheme. A failed verification must stop the request
// before any state change; the dispatch pipeline enforces that ordering.
package signature

// Verifier checks that a raw request body was produced by the claimed
// provider. header is the provider-specific signature header value.
//
// An unconfigured verifier (empty secret) fails open and logs a warning.
// That is a deliberate development-mode fallback; production config
// validation refuses empty secrets.
type Verifier interface {
	Verify(payload []byte, header string) bool
}
