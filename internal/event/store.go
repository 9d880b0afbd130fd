package event

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event: not found")

// Store is the persistence contract for the inbound event log.
//
// Claim is the idempotency primitive: it atomically inserts an unprocessed
// record if none exists for (provider, provider_event_id). A plain
// check-then-insert would let two concurrent deliveries of the same event ID
// both pass the read; an insert guarded by the unique constraint narrows that
// to the store's atomicity guarantee.
type Store interface {
	// Claim returns true if this delivery owns the event and should dispatch
	// it. It returns false when the event is already processed, or when an
	// unprocessed claim younger than redeliveryWindow exists (an earlier
	// delivery is presumed in flight). A stale unprocessed claim is taken
	// over so a crash mid-dispatch cannot wedge the event forever.
	Claim(ctx context.Context, e InboundEvent, redeliveryWindow time.Duration) (bool, error)

	// MarkProcessed flips the processed flag. The flag never transitions back.
	MarkProcessed(ctx context.Context, provider, providerEventID string, at time.Time) error

	Get(ctx context.Context, provider, providerEventID string) (InboundEvent, error)

	// List returns a page of events ordered by received_at descending,
	// plus the total row count for pagination.
	List(ctx context.Context, page, limit int) ([]InboundEvent, int, error)

	Stats(ctx context.Context, now time.Time) (Stats, error)
}
