package calls

import "time"

// CallRecord mirrors the telephony provider's call lifecycle state.
//
// The provider assigns CallID (call control ID); this service never invents
// call identity. State only moves along the lifecycle below and `completed`
// is terminal.
type CallRecord struct {
	CallID    string `json:"call_id" db:"call_id"`
	SessionID string `json:"session_id,omitempty" db:"session_id"`

	Direction   string `json:"direction" db:"direction"`
	FromAddress string `json:"from" db:"from_address"`
	ToAddress   string `json:"to" db:"to_address"`

	State CallState `json:"state" db:"state"`

	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DurationSeconds is the answered-to-ended span, or 0 while incomplete.
func (c CallRecord) DurationSeconds() int {
	if c.AnsweredAt == nil || c.EndedAt == nil {
		return 0
	}
	d := c.EndedAt.Sub(*c.AnsweredAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

type CallState string

const (
	CallStateInitiated CallState = "initiated"
	CallStateAnswered  CallState = "answered"
	CallStateBridged   CallState = "bridged"
	CallStateCompleted CallState = "completed"
)

// CanTransitionTo encodes the lifecycle:
// initiated -> answered -> bridged -> completed, with bridged skippable and
// hangup (completed) reachable from any state. No transition leaves completed.
func (s CallState) CanTransitionTo(next CallState) bool {
	if s == CallStateCompleted {
		return false
	}
	if next == CallStateCompleted {
		return true
	}
	switch s {
	case CallStateInitiated:
		return next == CallStateAnswered
	case CallStateAnswered:
		return next == CallStateBridged
	default:
		return false
	}
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Recording is a saved call recording reported by the provider.
type Recording struct {
	ID              string    `json:"id" db:"id"`
	CallID          string    `json:"call_id" db:"call_id"`
	RecordingURL    string    `json:"recording_url" db:"recording_url"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	Channels        string    `json:"channels,omitempty" db:"channels"`
	Format          string    `json:"format,omitempty" db:"format"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
