package gateway

import (
	"context"
	"fmt"

	"webhook-gateway/internal/event"
)

// HandlerFunc processes one provider event.
//
// Contract:
// - One conceptual unit of work per handler.
// - Safe to invoke more than once with the same input (upsert semantics);
//   concurrent duplicate delivery means at-least-once execution is possible.
// - Business-logic divergence (record not found, invalid transition) is
//   logged inside the handler and returns nil; a non-nil error means an
//   infrastructure failure the provider should retry.
type HandlerFunc func(ctx context.Context, evt event.ProviderEvent) error

// Router maps provider + event type to one handler. It is a lookup table
// built at startup; new event types register without touching existing
// handler code.
type Router struct {
	handlers map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

func routeKey(provider, eventType string) string {
	return provider + ":" + eventType
}

// Register binds a handler to a provider event type.
// Panics on duplicate registration to catch wiring mistakes at startup.
func (r *Router) Register(provider, eventType string, h HandlerFunc) {
	if provider == "" || eventType == "" || h == nil {
		panic("gateway: Register requires provider, event type and handler")
	}
	key := routeKey(provider, eventType)
	if _, exists := r.handlers[key]; exists {
		panic(fmt.Sprintf("gateway: duplicate handler registered for %s", key))
	}
	r.handlers[key] = h
}

// Lookup returns the handler for a provider event type, if any.
func (r *Router) Lookup(provider, eventType string) (HandlerFunc, bool) {
	h, ok := r.handlers[routeKey(provider, eventType)]
	return h, ok
}
