package auth

import (
	"sync"

	"github.com/google/uuid"
)

// SessionStore maps opaque bearer tokens to principals. Sessions live in
// memory only; a restart logs everyone out, which is acceptable for an
// exercise scoreboard.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Principal
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]Principal{}}
}

// Create mints a token for the principal.
func (s *SessionStore) Create(p Principal) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = p
	return token
}

// Get resolves a token.
func (s *SessionStore) Get(token string) (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sessions[token]
	return p, ok
}

// Delete invalidates a token.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
