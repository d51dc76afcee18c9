package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/screentime/internal/adapter/metrics"
	"github.com/pscheid92/screentime/internal/domain"
)

// RetentionService deletes old screen sessions.
type RetentionService struct {
	sessions domain.ScreenSessionRepository
	cache    domain.SummaryCache
	clock    clockwork.Clock
	metrics  *metrics.RetentionMetrics
}

// NewRetentionService creates the retention use case. cache may be nil.
func NewRetentionService(sessions domain.ScreenSessionRepository, cache domain.SummaryCache, clock clockwork.Clock, m *metrics.RetentionMetrics) *RetentionService {
	return &RetentionService{sessions: sessions, cache: cache, clock: clock, metrics: m}
}

// Purge removes rows created more than p.Days ago. With AnonymizedOnly set,
// rows attributed to a user are never removed.
func (s *RetentionService) Purge(ctx context.Context, p domain.RetentionPolicy) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	start := s.clock.Now()
	cutoff := p.Cutoff(start)
	defer func() {
		s.metrics.Duration.Observe(s.clock.Since(start).Seconds())
	}()

	deleted, err := s.sessions.DeleteCreatedBefore(ctx, cutoff, p.AnonymizedOnly)
	if err != nil {
		s.metrics.Runs.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to purge screen sessions: %w", err)
	}

	s.metrics.Runs.WithLabelValues("success").Inc()
	s.metrics.RowsDeleted.Add(float64(deleted))
	if deleted > 0 {
		invalidateSummaries(ctx, s.cache)
	}

	slog.InfoContext(ctx, "Retention purge finished",
		"deleted", deleted,
		"days", p.Days,
		"anonymized_only", p.AnonymizedOnly,
		"cutoff", cutoff)
	return deleted, nil
}
