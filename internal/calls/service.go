package calls

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"webhook-gateway/internal/event"
	"webhook-gateway/internal/gateway"
	"webhook-gateway/pkg/logger"
)

// Service applies telephony lifecycle events to the call repository.
//
// Handler methods follow the dispatch contract: malformed payloads, unknown
// calls and invalid transitions are business divergences, logged and absorbed
// so the delivery still acks. Only repository infrastructure errors propagate.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register wires the service's handlers into the dispatch table.
func (s *Service) Register(r *gateway.Router) {
	r.Register(gateway.ProviderTelnyx, "call.initiated", s.HandleCallInitiated)
	r.Register(gateway.ProviderTelnyx, "call.answered", s.HandleCallAnswered)
	r.Register(gateway.ProviderTelnyx, "call.bridged", s.HandleCallBridged)
	r.Register(gateway.ProviderTelnyx, "call.hangup", s.HandleCallHangup)
	r.Register(gateway.ProviderTelnyx, "call.recording.saved", s.HandleRecordingSaved)

	// Mid-call and conference signals carry no state we track, but
	// registering them keeps the events out of the unhandled bucket and lets
	// dashboard subscribers see them broadcast.
	for _, t := range []string{
		"call.dtmf.received",
		"call.gather.ended",
		"call.speak.ended",
		"call.playback.ended",
		"call.machine_detection_ended",
		"conference.created",
		"conference.ended",
		"conference.participant.joined",
		"conference.participant.left",
	} {
		r.Register(gateway.ProviderTelnyx, t, s.HandleCallSignal)
	}
}

type callPayload struct {
	CallControlID string `json:"call_control_id"`
	CallSessionID string `json:"call_session_id"`
	ConnectionID  string `json:"connection_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Direction     string `json:"direction"`
}

type recordingPayload struct {
	CallControlID string `json:"call_control_id"`
	RecordingURLs struct {
		MP3 string `json:"mp3"`
		WAV string `json:"wav"`
	} `json:"recording_urls"`
	DurationSeconds int    `json:"duration_seconds"`
	Channels        string `json:"channels"`
	Format          string `json:"format"`
}

func (s *Service) HandleCallInitiated(ctx context.Context, evt event.ProviderEvent) error {
	var p callPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.CallControlID == "" {
		logger.From(ctx).Warn("call payload missing call_control_id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}

	at := evt.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	direction := p.Direction
	if direction == "" {
		direction = DirectionInbound
	}

	err := s.repo.Upsert(ctx, CallRecord{
		CallID:      p.CallControlID,
		SessionID:   p.CallSessionID,
		Direction:   direction,
		FromAddress: p.From,
		ToAddress:   p.To,
		State:       CallStateInitiated,
		CreatedAt:   at,
	})
	if err != nil {
		return err
	}

	logger.From(ctx).Info("call initiated", "call_id", p.CallControlID, "direction", direction)
	return nil
}

func (s *Service) HandleCallAnswered(ctx context.Context, evt event.ProviderEvent) error {
	return s.transition(ctx, evt, CallStateAnswered)
}

func (s *Service) HandleCallBridged(ctx context.Context, evt event.ProviderEvent) error {
	return s.transition(ctx, evt, CallStateBridged)
}

func (s *Service) HandleCallHangup(ctx context.Context, evt event.ProviderEvent) error {
	return s.transition(ctx, evt, CallStateCompleted)
}

func (s *Service) transition(ctx context.Context, evt event.ProviderEvent, next CallState) error {
	var p callPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.CallControlID == "" {
		logger.From(ctx).Warn("call payload missing call_control_id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}

	at := evt.OccurredAt
	if at.IsZero() {
		at = s.now()
	}

	rec, err := s.repo.Transition(ctx, p.CallControlID, next, at)
	switch {
	case errors.Is(err, ErrNotFound):
		// Lifecycle events can outrun call.initiated or refer to calls from
		// before this service existed.
		logger.From(ctx).Warn("lifecycle event for unknown call, skipping",
			"call_id", p.CallControlID, "event_type", evt.EventType)
		return nil
	case errors.Is(err, ErrInvalidTransition):
		logger.From(ctx).Warn("out-of-order lifecycle event, skipping",
			"call_id", p.CallControlID, "event_type", evt.EventType, "next_state", next)
		return nil
	case err != nil:
		return err
	}

	logger.From(ctx).Info("call state updated",
		"call_id", rec.CallID, "state", rec.State)
	return nil
}

func (s *Service) HandleRecordingSaved(ctx context.Context, evt event.ProviderEvent) error {
	var p recordingPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.CallControlID == "" {
		logger.From(ctx).Warn("recording payload missing call_control_id, skipping",
			"event_id", evt.EventID)
		return nil
	}

	url := p.RecordingURLs.MP3
	format := p.Format
	if url == "" {
		url = p.RecordingURLs.WAV
	}
	if format == "" && url == p.RecordingURLs.MP3 && url != "" {
		format = "mp3"
	}

	at := evt.OccurredAt
	if at.IsZero() {
		at = s.now()
	}

	err := s.repo.AddRecording(ctx, Recording{
		ID:              evt.EventID,
		CallID:          p.CallControlID,
		RecordingURL:    url,
		DurationSeconds: p.DurationSeconds,
		Channels:        p.Channels,
		Format:          format,
		CreatedAt:       at,
	})
	if err != nil {
		return err
	}

	logger.From(ctx).Info("call recording saved",
		"call_id", p.CallControlID, "duration_seconds", p.DurationSeconds)
	return nil
}

// HandleCallSignal acknowledges mid-call signals without mutating state.
func (s *Service) HandleCallSignal(ctx context.Context, evt event.ProviderEvent) error {
	logger.From(ctx).Debug("call signal received", "event_type", evt.EventType)
	return nil
}
