package memory

import (
	"context"
	"sync"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

// SessionStore keeps sessions in process memory. A restart drops every
// in-flight session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewSessionStore creates an empty in-memory session store
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

// Get returns a copy of the user's session, or nil if there is none
func (s *SessionStore) Get(ctx context.Context, userID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	session.Answers = append([]domain.Answer(nil), session.Answers...)
	return &session, nil
}

// Put stores a copy of the session
func (s *SessionStore) Put(ctx context.Context, session *domain.Session) error {
	stored := *session
	stored.Answers = append([]domain.Answer(nil), session.Answers...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = stored
	return nil
}

// Delete removes the user's session if present
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// Len returns the number of active sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
