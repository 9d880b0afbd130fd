package event

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store useful for tests.
// It is not intended for production use.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]*InboundEvent // keyed by provider + "/" + provider_event_id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]*InboundEvent)}
}

func key(provider, providerEventID string) string {
	return provider + "/" + providerEventID
}

func (s *MemoryStore) Claim(_ context.Context, e InboundEvent, redeliveryWindow time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(e.Provider, e.ProviderEventID)
	if existing, ok := s.events[k]; ok {
		if existing.Processed {
			return false, nil
		}
		if existing.ReceivedAt.After(e.ReceivedAt.Add(-redeliveryWindow)) {
			return false, nil
		}
		existing.ReceivedAt = e.ReceivedAt
		return true, nil
	}

	cp := e
	s.events[k] = &cp
	return true, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, provider, providerEventID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.events[key(provider, providerEventID)]; ok && !e.Processed {
		e.Processed = true
		t := at
		e.ProcessedAt = &t
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, provider, providerEventID string) (InboundEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.events[key(provider, providerEventID)]; ok {
		return *e, nil
	}
	return InboundEvent{}, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, page, limit int) ([]InboundEvent, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	all := make([]InboundEvent, 0, len(s.events))
	for _, e := range s.events {
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ReceivedAt.After(all[j].ReceivedAt) })

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

func (s *MemoryStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var st Stats
	for _, e := range s.events {
		st.Total++
		if e.Processed {
			st.Processed++
		} else {
			st.Pending++
		}
		if !e.ReceivedAt.Before(dayStart) {
			st.Today++
		}
	}
	if st.Total > 0 {
		st.SuccessRate = float64(st.Processed) / float64(st.Total) * 100
	}
	return st, nil
}
