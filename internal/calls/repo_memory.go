package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository used in tests and local development.
// It mirrors the Postgres repository's upsert and transition semantics.
type MemoryRepo struct {
	mu         sync.Mutex
	calls      map[string]CallRecord
	recordings map[string]Recording
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		calls:      make(map[string]CallRecord),
		recordings: make(map[string]Recording),
	}
}

func (r *MemoryRepo) Upsert(_ context.Context, rec CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.calls[rec.CallID]; ok {
		cur.SessionID = rec.SessionID
		cur.UpdatedAt = rec.CreatedAt
		r.calls[rec.CallID] = cur
		return nil
	}
	rec.UpdatedAt = rec.CreatedAt
	r.calls[rec.CallID] = rec
	return nil
}

func (r *MemoryRepo) Transition(_ context.Context, callID string, next CallState, at time.Time) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.calls[callID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	if cur.State == next {
		return cur, nil
	}
	if !cur.State.CanTransitionTo(next) {
		return CallRecord{}, ErrInvalidTransition
	}

	cur.State = next
	switch next {
	case CallStateAnswered:
		if cur.AnsweredAt == nil {
			t := at
			cur.AnsweredAt = &t
		}
	case CallStateCompleted:
		if cur.EndedAt == nil {
			t := at
			cur.EndedAt = &t
		}
	}
	cur.UpdatedAt = at
	r.calls[callID] = cur
	return cur, nil
}

func (r *MemoryRepo) Get(_ context.Context, callID string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.calls[callID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) List(_ context.Context, page, limit int) ([]CallRecord, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]CallRecord, 0, len(r.calls))
	for _, rec := range r.calls {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryRepo) AddRecording(_ context.Context, rec Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recordings[rec.ID]; ok {
		return nil
	}
	r.recordings[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) Recordings(_ context.Context, callID string) ([]Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Recording
	for _, rec := range r.recordings {
		if rec.CallID == callID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
