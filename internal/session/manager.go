package session

import "sync"

// #region manager

// Manager hands out one session worker per session id. Workers for
// different sessions run fully in parallel; the manager only guards the
// lookup map.
type Manager struct {
	mu       sync.Mutex
	opts     Options
	sessions map[string]*Session
}

// NewManager creates a manager; every session it creates shares opts.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts, sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it on first use.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := New(id, m.opts)
	m.sessions[id] = s
	return s
}

// Len reports how many sessions exist.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close drains and stops every session worker.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// #endregion manager
