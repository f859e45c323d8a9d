package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngocvo/retailbot/internal/history"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

var ErrNotFound = errors.New("session not found")

// Session is the server-side state of one live client connection. The
// History is owned by the connection's goroutine for the session lifetime;
// the manager only tracks identity and liveness. A session never reopens
// after it is closed.
type Session struct {
	ID             string
	Status         Status
	History        *history.History
	StartedAt      time.Time
	LastActivityAt time.Time
}

// Manager tracks sessions keyed by connection identity. Two different
// sessions never contend on the same history; the map itself is the only
// shared state and is mutex-guarded.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	historyPairs      int
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(historyPairs int, inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		historyPairs:      historyPairs,
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create opens a session with a fresh bounded history.
func (m *Manager) Create() *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		Status:         StatusOpen,
		History:        history.New(m.historyPairs),
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
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

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// End closes the session and discards its history.
func (m *Manager) End(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.Status = StatusClosed
	s.History = nil
	delete(m.sessions, sessionID)
	return nil
}

// StartJanitor expires sessions whose connection went quiet without a clean
// disconnect. Expiry never mutates the Session itself; it unregisters the
// entry so the owning goroutine sees ErrNotFound on its next Touch.
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
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		// Only the map entry is removed. The session object stays
		// untouched: its history is owned by the connection goroutine,
		// which observes the expiry through Touch returning ErrNotFound
		// and closes the connection itself.
		delete(m.sessions, id)
		expired = append(expired, s)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}
