package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/screentime/internal/domain"
)

const summaryComputeTimeout = 10 * time.Second

// SummaryService computes dashboard summaries with a read-through cache.
type SummaryService struct {
	sessions domain.ScreenSessionRepository
	cache    domain.SummaryCache
	cacheTTL time.Duration
	clock    clockwork.Clock
	group    singleflight.Group
}

// NewSummaryService creates the summary use case. cache may be nil; a zero
// cacheTTL also disables caching.
func NewSummaryService(sessions domain.ScreenSessionRepository, cache domain.SummaryCache, cacheTTL time.Duration, clock clockwork.Clock) *SummaryService {
	if cacheTTL <= 0 {
		cache = nil
	}
	return &SummaryService{
		sessions: sessions,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clock,
	}
}

func (s *SummaryService) Summary(ctx context.Context, q domain.SummaryQuery) (*domain.Summary, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cached, gen, storable := s.cached(ctx, q)
	if cached != nil {
		return cached, nil
	}

	// Shared by every caller on key; detached from the first caller's cancellation.
	key := fmt.Sprintf("%s:%d", q.Scope(), q.Days)
	v, err, _ := s.group.Do(key, func() (any, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryComputeTimeout)
		defer cancel()

		since := s.clock.Now().Add(-time.Duration(q.Days) * 24 * time.Hour)
		sessions, err := s.sessions.ListSince(computeCtx, since, q.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}

		summary := Aggregate(sessions, q.Days)
		if storable {
			s.store(computeCtx, gen, q, &summary)
		}
		return &summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Summary), nil
}

// cached returns a hit, or on a miss the generation to store the computed
// summary under. storable is false when the cache is off or unreadable.
func (s *SummaryService) cached(ctx context.Context, q domain.SummaryQuery) (summary *domain.Summary, gen domain.CacheGeneration, storable bool) {
	if s.cache == nil {
		return nil, 0, false
	}
	summary, gen, err := s.cache.Get(ctx, q)
	if err == nil {
		return summary, gen, false
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		slog.WarnContext(ctx, "Summary cache read failed, computing", "scope", q.Scope(), "error", err)
		return nil, 0, false
	}
	return nil, gen, true
}

func (s *SummaryService) store(ctx context.Context, gen domain.CacheGeneration, q domain.SummaryQuery, summary *domain.Summary) {
	if err := s.cache.Set(ctx, gen, q, summary, s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "Summary cache write failed", "scope", q.Scope(), "error", err)
	}
}
