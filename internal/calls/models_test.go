package calls

import (
	"testing"
	"time"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from CallState
		to   CallState
		want bool
	}{
		{"initiated to answered", CallStateInitiated, CallStateAnswered, true},
		{"initiated to completed", CallStateInitiated, CallStateCompleted, true},
		{"initiated skips to bridged", CallStateInitiated, CallStateBridged, false},
		{"answered to bridged", CallStateAnswered, CallStateBridged, true},
		{"answered to completed", CallStateAnswered, CallStateCompleted, true},
		{"answered back to initiated", CallStateAnswered, CallStateInitiated, false},
		{"bridged to completed", CallStateBridged, CallStateCompleted, true},
		{"bridged back to answered", CallStateBridged, CallStateAnswered, false},
		{"completed is terminal", CallStateCompleted, CallStateAnswered, false},
		{"completed stays completed", CallStateCompleted, CallStateInitiated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestDurationSeconds(t *testing.T) {
	answered := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ended := answered.Add(95 * time.Second)

	rec := CallRecord{AnsweredAt: &answered, EndedAt: &ended}
	if got := rec.DurationSeconds(); got != 95 {
		t.Errorf("DurationSeconds() = %d, want 95", got)
	}

	if got := (CallRecord{AnsweredAt: &answered}).DurationSeconds(); got != 0 {
		t.Errorf("DurationSeconds() without ended_at = %d, want 0", got)
	}

	flipped := CallRecord{AnsweredAt: &ended, EndedAt: &answered}
	if got := flipped.DurationSeconds(); got != 0 {
		t.Errorf("DurationSeconds() with ended before answered = %d, want 0", got)
	}
}
