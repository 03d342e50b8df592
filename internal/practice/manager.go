package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/mockinterview/internal/store"
)

var ErrNotFound = errors.New("session not found")

// Manager owns the live practice sessions. Every session gets its own controllers.
type Manager struct {
	deps              Deps
	ctx               context.Context
	cancel            context.CancelFunc
	inactivityTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	onExpire func(*Session)
}

func NewManager(deps Deps, inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:              deps,
		ctx:               ctx,
		cancel:            cancel,
		inactivityTimeout: inactivityTimeout,
		sessions:          make(map[string]*Session),
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create() *Session {
	s := NewSession(m.ctx, uuid.NewString(), m.deps)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.deps.Metrics.SetActiveSessions(count)
	m.deps.Metrics.ObserveSessionEvent("created")
	return s
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Restore returns the live session, or rebuilds one from the snapshot store.
func (m *Manager) Restore(ctx context.Context, sessionID string) (*Session, error) {
	if s, err := m.Get(sessionID); err == nil {
		return s, nil
	}
	if m.deps.Store == nil {
		return nil, ErrNotFound
	}
	snap, err := m.deps.Store.Load(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	s := NewSession(m.ctx, sessionID, m.deps)
	s.restore(snap)
	m.sessions[sessionID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.deps.Metrics.SetActiveSessions(count)
	m.deps.Metrics.ObserveSessionEvent("restored")
	return s, nil
}

// End closes and forgets a session. The persisted snapshot is kept for Restore.
func (m *Manager) End(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	m.deps.Metrics.SetActiveSessions(count)
	m.deps.Metrics.ObserveSessionEvent("ended")
	return nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive(time.Now().UTC())
			}
		}
	}()
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.cancel()
	m.deps.Metrics.SetActiveSessions(0)
}

func (m *Manager) expireInactive(now time.Time) {
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) < m.inactivityTimeout {
			continue
		}
		expired = append(expired, s)
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	hook := m.onExpire
	m.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	for _, s := range expired {
		s.Close()
		m.deps.Metrics.ObserveSessionEvent("expired")
		if hook != nil {
			hook(s)
		}
	}
	m.deps.Metrics.SetActiveSessions(count)
}
