package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

const (
	journalPending = "pending"
	journalStored  = "stored"
)

// JournalEntry is a report waiting in, or recorded by, the journal
type JournalEntry struct {
	ID        string
	Report    domain.Report
	Status    string
	CreatedAt time.Time
}

// Journal is a local append-only record of completed reports. Entries stay
// pending until the remote store confirms the write.
type Journal struct {
	db  *DB
	now func() time.Time
}

// NewJournal creates the journal table if needed
func NewJournal(ctx context.Context, db *DB) (*Journal, error) {
	if _, err := db.ExecContext(ctx, journalSchema); err != nil {
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Append records a report as pending and returns the entry ID
func (j *Journal) Append(ctx context.Context, report *domain.Report) (string, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	id := uuid.NewString()
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO report_journal (id, payload, status, created_at) VALUES (?, ?, ?, ?)`,
		id, string(payload), journalPending, j.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to append journal entry: %w", err)
	}
	return id, nil
}

// MarkStored records that the remote store accepted the entry
func (j *Journal) MarkStored(ctx context.Context, entryID string, reportID int64) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE report_journal SET status = ?, report_id = ?, stored_at = ? WHERE id = ?`,
		journalStored, reportID, j.now().UTC(), entryID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark journal entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal entry %s not found", entryID)
	}
	return nil
}

// Pending lists entries the remote store never confirmed, oldest first
func (j *Journal) Pending(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, payload, status, created_at FROM report_journal
		 WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		journalPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e       JournalEntry
			payload string
		)
		if err := rows.Scan(&e.ID, &payload, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journal entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Replay pushes pending entries to the report store and marks the ones it
// accepts. Entries younger than minAge are left alone, since their first save
// may still be in flight. It stops at the first store failure and returns
// how many were stored.
func (j *Journal) Replay(ctx context.Context, reports domain.ReportRepository, limit int, minAge time.Duration) (int, error) {
	entries, err := j.Pending(ctx, limit)
	if err != nil {
		return 0, err
	}

	cutoff := j.now().UTC().Add(-minAge)
	stored := 0
	for _, e := range entries {
		if e.CreatedAt.After(cutoff) {
			break
		}
		report := e.Report
		report.ID = 0
		if err := reports.Create(ctx, &report); err != nil {
			return stored, fmt.Errorf("failed to replay journal entry %s: %w", e.ID, err)
		}
		if err := j.MarkStored(ctx, e.ID, report.ID); err != nil {
			return stored, err
		}
		stored++
		log.Info().Str("journal_entry", e.ID).Int64("report_id", report.ID).Msg("Replayed journal entry")
	}
	return stored, nil
}
