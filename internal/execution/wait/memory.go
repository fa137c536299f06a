package wait

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps waits in process memory
type MemoryStore struct {
	waits map[string]Wait
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{waits: make(map[string]Wait)}
}

func (s *MemoryStore) Save(ctx context.Context, w *Wait) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits[w.ExecutionID] = *w
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, executionID string) (*Wait, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.waits[executionID]
	if !ok {
		return nil, notFoundError(executionID)
	}
	return &w, nil
}

func (s *MemoryStore) MarkResumed(ctx context.Context, executionID, trigger string, at time.Time) (*Wait, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.waits[executionID]
	if !ok {
		return nil, notFoundError(executionID)
	}
	if w.Status != StatusWaiting {
		return nil, notWaitingError(executionID)
	}

	w.Status = StatusResumed
	w.Trigger = trigger
	w.ResumedAt = &at
	s.waits[executionID] = w
	return &w, nil
}

func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time) ([]*Wait, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*Wait
	for _, w := range s.waits {
		if w.Status == StatusWaiting && !w.Until.After(now) {
			w := w
			expired = append(expired, &w)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].Until.Before(expired[j].Until) })
	return expired, nil
}

func (s *MemoryStore) CountWaiting(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, w := range s.waits {
		if w.Status == StatusWaiting {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
