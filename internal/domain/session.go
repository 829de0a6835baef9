package domain

import (
	"context"
	"time"
)

// Session is the in-flight progress of one chat user through the question sequence.
// StepIndex always equals len(Answers).
type Session struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	StepIndex   int       `json:"step_index"`
	Answers     []Answer  `json:"answers"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Answer is a validated value for one step. Date is set only by the date step;
// every other step carries its normalized value in Text.
type Answer struct {
	Date time.Time `json:"date,omitzero"`
	Text string    `json:"text,omitempty"`
}

// Accept appends an answer and advances the step pointer.
func (s *Session) Accept(a Answer, now time.Time) {
	s.Answers = append(s.Answers, a)
	s.StepIndex++
	s.UpdatedAt = now
}

// SessionStore defines the interface for session storage.
// Get returns (nil, nil) when no session exists for the user.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, session *Session) error
	Delete(ctx context.Context, userID string) error
}
