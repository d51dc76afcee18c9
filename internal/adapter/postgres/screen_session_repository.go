package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/screentime/internal/domain"
)

const sessionColumns = `id, session_id, user_id, url, title, category, started_at, ended_at, duration, created_at, updated_at`

const upsertSessionSQL = `
INSERT INTO screen_sessions (session_id, user_id, url, title, category, started_at, ended_at, duration)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id) WHERE session_id IS NOT NULL DO UPDATE SET
    user_id    = EXCLUDED.user_id,
    url        = EXCLUDED.url,
    title      = EXCLUDED.title,
    category   = EXCLUDED.category,
    started_at = EXCLUDED.started_at,
    ended_at   = EXCLUDED.ended_at,
    duration   = EXCLUDED.duration,
    updated_at = now()
RETURNING id, (xmax = 0) AS created`

const listSessionsSinceSQL = `
SELECT ` + sessionColumns + `
FROM screen_sessions
WHERE started_at >= $1 AND ($2::text IS NULL OR user_id = $2)
ORDER BY started_at`

const deleteSessionsSQL = `
DELETE FROM screen_sessions
WHERE created_at < $1 AND (NOT $2::boolean OR user_id IS NULL)`

type ScreenSessionRepo struct {
	pool *pgxpool.Pool
}

func NewScreenSessionRepo(pool *pgxpool.Pool) *ScreenSessionRepo {
	return &ScreenSessionRepo{pool: pool}
}

// Upsert relies on the partial unique index over session_id; records without
// a session id always insert. xmax is zero only for freshly inserted tuples.
func (r *ScreenSessionRepo) Upsert(ctx context.Context, s domain.ScreenSession) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	err := r.pool.QueryRow(ctx, upsertSessionSQL,
		nullIfEmpty(s.SessionID),
		s.UserID,
		nullIfEmpty(s.URL),
		nullIfEmpty(s.Title),
		nullIfEmpty(s.Category),
		s.StartedAt,
		s.EndedAt,
		s.Duration,
	).Scan(&res.ID, &res.Created)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("failed to upsert screen session: %w", err)
	}
	return res, nil
}

func (r *ScreenSessionRepo) ListSince(ctx context.Context, since time.Time, userID *string) ([]domain.ScreenSession, error) {
	rows, err := r.pool.Query(ctx, listSessionsSinceSQL, since, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list screen sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("failed to scan screen sessions: %w", err)
	}
	return sessions, nil
}

func (r *ScreenSessionRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time, anonymizedOnly bool) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteSessionsSQL, cutoff, anonymizedOnly)
	if err != nil {
		return 0, fmt.Errorf("failed to delete screen sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (r *ScreenSessionRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanSession(row pgx.CollectableRow) (domain.ScreenSession, error) {
	var (
		s                               domain.ScreenSession
		sessionID, url, title, category *string
	)
	err := row.Scan(&s.ID, &sessionID, &s.UserID, &url, &title, &category,
		&s.StartedAt, &s.EndedAt, &s.Duration, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.ScreenSession{}, err
	}
	s.SessionID = deref(sessionID)
	s.URL = deref(url)
	s.Title = deref(title)
	s.Category = deref(category)
	s.StartedAt = s.StartedAt.UTC()
	s.EndedAt = s.EndedAt.UTC()
	return s, nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
