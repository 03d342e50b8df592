package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps snapshots in process for local/dev use.
type InMemoryStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]Snapshot
	now   func() time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		ttl:   ttl,
		items: make(map[string]Snapshot),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now()
	}
	s.items[snap.SessionID] = snap
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, sessionID string) (Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.items[sessionID]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	if s.ttl > 0 && s.now().Sub(snap.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.items, sessionID)
		s.mu.Unlock()
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
