package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/sichatas/internal/metrics"
)

// Manager tracks live sessions.
type Manager struct {
	deps Deps
	ttl  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. Sessions idle for longer than ttl are
// removed by Sweep.
func NewManager(deps Deps, ttl time.Duration) *Manager {
	return &Manager{deps: deps, ttl: ttl, sessions: make(map[string]*Session)}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.deps)

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return s
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle since before now-ttl and returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-m.ttl)

	m.mu.Lock()
	var removed []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed = append(removed, s)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range removed {
		s.Close()
	}
	metrics.ActiveSessions.Set(float64(n))
	return len(removed)
}

// Close cancels every session's in-flight work.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
	metrics.ActiveSessions.Set(0)
}
