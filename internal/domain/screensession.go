package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScreenSession is one stored continuous stretch of activity in a tab.
type ScreenSession struct {
	ID        uuid.UUID
	SessionID string // client idempotency key, empty when the client sent none
	UserID    *string
	URL       string
	Title     string
	Category  string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  int // seconds
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionInput is a session as reported by a tracker, before identity is attached.
type SessionInput struct {
	SessionID  string    `json:"sessionId,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Category   string    `json:"category,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	Duration   int       `json:"duration"`
	Anonymized bool      `json:"anonymized,omitempty"`
}

// SessionDuration returns the whole seconds between start and end, never negative.
func SessionDuration(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// ToSession attaches identity and normalizes the record for storage.
// The stored duration is always derived from the bounds.
func (in SessionInput) ToSession(userID *string) ScreenSession {
	if in.Anonymized {
		userID = nil
	}
	return ScreenSession{
		SessionID: in.SessionID,
		UserID:    userID,
		URL:       in.URL,
		Title:     in.Title,
		Category:  in.Category,
		StartedAt: in.StartedAt.UTC(),
		EndedAt:   in.EndedAt.UTC(),
		Duration:  SessionDuration(in.StartedAt, in.EndedAt),
	}
}

// UpsertResult reports the row a session landed in.
type UpsertResult struct {
	ID      uuid.UUID `json:"id"`
	Created bool      `json:"created"`
}

type ScreenSessionRepository interface {
	// Upsert inserts s, or updates the row with the same non-empty SessionID.
	Upsert(ctx context.Context, s ScreenSession) (UpsertResult, error)
	// ListSince returns sessions started at or after since, optionally for one user.
	ListSince(ctx context.Context, since time.Time, userID *string) ([]ScreenSession, error)
	// DeleteCreatedBefore removes rows created before cutoff. When anonymizedOnly
	// is set, rows with a user id are kept.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time, anonymizedOnly bool) (int64, error)
}

// IngestService stores tracker batches.
type IngestService interface {
	Ingest(ctx context.Context, userID *string, inputs []SessionInput) ([]UpsertResult, error)
}
