package domain

import (
	"context"
	"time"
)

// Report is a completed 1:1 meeting form
type Report struct {
	ID           int64     `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	ExternalID   *int64    `json:"external_id,omitempty"`
	ManagerName  *string   `json:"manager_name,omitempty"`
	ManagerEmail *string   `json:"manager_email,omitempty"`
	MeetingDate  time.Time `json:"meeting_date"`
	Mood         string    `json:"mood"`
	MoodComment  string    `json:"mood_comment"`
	Achievements string    `json:"achievements"`
	Topics       string    `json:"topics"`
	Agreements   string    `json:"agreements"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReportRepository defines the interface for report storage.
// Create assigns ID on success.
type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
}

// ReportJournal is a durable local record of completed reports, written
// before the remote store is attempted.
type ReportJournal interface {
	Append(ctx context.Context, report *Report) (string, error)
	MarkStored(ctx context.Context, entryID string, reportID int64) error
}

// IdentityResolver looks up the email address of a chat user
type IdentityResolver interface {
	ResolveEmail(ctx context.Context, msg InboundMessage) (string, error)
}

// Notifier sends a plain-text email
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
