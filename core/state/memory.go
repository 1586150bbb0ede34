package state

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore constructs an in-memory Store for tests and development.
// Sessions do not survive a restart.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]*Session),
	}
}

// Load returns a copy of the user's session or nil when none exists.
func (m *memoryStore) Load(_ context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[userID]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

// Save stores a copy of s if the stored version still matches.
func (m *memoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	if existing, ok := m.sessions[s.UserID]; ok {
		current = existing.Version
	}
	if current != s.Version {
		return ErrConflict
	}
	s.Version++
	m.sessions[s.UserID] = s.Clone()
	return nil
}

// Delete removes the entire session for a user.
func (m *memoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
