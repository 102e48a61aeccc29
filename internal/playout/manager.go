package playout

import (
	"sync"

	"github.com/google/uuid"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/metrics"
	"github.com/linearcast/playout/pkg/models"
)

// Manager tracks live viewer sessions. Sessions are independent; the
// manager only hands them out and tears them down.
type Manager struct {
	resolver *Resolver
	log      *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(resolver *Resolver, log *logging.Logger) *Manager {
	return &Manager{
		resolver: resolver,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Open creates a session for a channel and runs its first evaluation.
func (m *Manager) Open(ch models.Channel) *Session {
	s := newSession(uuid.New().String(), ch, m.resolver, m.log)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	s.Refresh()
	return s
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

// Close tears down a session. It reports whether the session existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	s.Close()
	metrics.ActiveSessions.Dec()
	return true
}

// CloseAll tears down every session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
