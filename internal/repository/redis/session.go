package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/oneonone-bot/internal/domain"
	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "oneonone:session:"

// Sealer encrypts session payloads at rest
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// SessionStore keeps sessions in Redis so several bot instances can share them.
// Every write refreshes the TTL; abandoned sessions expire on their own.
type SessionStore struct {
	client *Client
	ttl    time.Duration
	sealer Sealer
}

// NewSessionStore creates a Redis session store. A zero ttl keeps sessions forever.
func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// WithSealer encrypts answers before they are written to Redis
func (s *SessionStore) WithSealer(sealer Sealer) *SessionStore {
	s.sealer = sealer
	return s
}

func sessionKey(userID string) string {
	return sessionPrefix + userID
}

// Get loads the user's session, or nil if there is none
func (s *SessionStore) Get(ctx context.Context, userID string) (*domain.Session, error) {
	data, err := s.client.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if s.sealer != nil {
		if data, err = s.sealer.Open(data); err != nil {
			return nil, fmt.Errorf("failed to open session: %w", err)
		}
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Put stores the session and refreshes its TTL
func (s *SessionStore) Put(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return fmt.Errorf("failed to seal session: %w", err)
		}
	}

	if err := s.client.rdb.Set(ctx, sessionKey(session.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the user's session
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.rdb.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
