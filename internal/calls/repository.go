package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("calls: call not found")
	ErrInvalidTransition = errors.New("calls: invalid state transition")
)

// Repository is the persistence contract for call records.
//
// Upsert and Transition are the handler-facing mutations and both must be
// safe to invoke repeatedly with the same input: webhook deliveries can
// arrive more than once under concurrent duplicates.
type Repository interface {
	// Upsert creates the record or refreshes the provider-owned fields if it
	// already exists. State is only set on create.
	Upsert(ctx context.Context, rec CallRecord) error

	// Transition moves a call to next if the lifecycle allows it.
	// Re-applying the current state is a no-op returning the stored record.
	// Returns ErrNotFound or ErrInvalidTransition on business divergence.
	Transition(ctx context.Context, callID string, next CallState, at time.Time) (CallRecord, error)

	Get(ctx context.Context, callID string) (CallRecord, error)
	List(ctx context.Context, page, limit int) ([]CallRecord, int, error)

	AddRecording(ctx context.Context, rec Recording) error
	Recordings(ctx context.Context, callID string) ([]Recording, error)
}
