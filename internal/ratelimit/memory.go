package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps windows in process memory. It is meant for development
// and tests; counts are lost on restart and not shared between replicas.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[memoryKey]*Window
	now     func() time.Time
}

type memoryKey struct {
	userID      string
	windowStart int64
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{windows: make(map[memoryKey]*Window), now: now}
}

func (s *MemoryStore) Get(_ context.Context, userID string, windowStart int64) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[memoryKey{userID, windowStart}]
	if !ok {
		return nil, nil
	}
	if w.TTL <= s.now().Unix() {
		delete(s.windows, memoryKey{userID, windowStart})
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) Increment(_ context.Context, userID string, windowStart, ttl int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{userID, windowStart}
	w, ok := s.windows[key]
	if !ok {
		w = &Window{UserID: userID, WindowStart: windowStart}
		s.windows[key] = w
	}
	w.Operations++
	w.TTL = ttl
	return nil
}

func (s *MemoryStore) Create(_ context.Context, userID string, windowStart, ttl int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{userID, windowStart}
	if _, ok := s.windows[key]; ok {
		return ErrWindowExists
	}
	s.windows[key] = &Window{UserID: userID, WindowStart: windowStart, Operations: 1, TTL: ttl}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string, windowStart int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, memoryKey{userID, windowStart})
	return nil
}

// Purge drops every window whose ttl has passed.
func (s *MemoryStore) Purge(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, w := range s.windows {
		if w.TTL <= now.Unix() {
			delete(s.windows, key)
			n++
		}
	}
	return n, nil
}
