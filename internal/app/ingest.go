package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/screentime/internal/adapter/metrics"
	"github.com/pscheid92/screentime/internal/domain"
)

// IngestService stores batches reported by trackers.
type IngestService struct {
	sessions domain.ScreenSessionRepository
	cache    domain.SummaryCache
	metrics  *metrics.IngestMetrics
}

// NewIngestService creates the ingest use case. cache may be nil.
func NewIngestService(sessions domain.ScreenSessionRepository, cache domain.SummaryCache, m *metrics.IngestMetrics) *IngestService {
	return &IngestService{sessions: sessions, cache: cache, metrics: m}
}

// Ingest upserts every input in order. userID is attached unless the input is
// anonymized. Records stored before a failure stay stored; retries are safe
// because each record carries its own session id.
func (s *IngestService) Ingest(ctx context.Context, userID *string, inputs []domain.SessionInput) ([]domain.UpsertResult, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	s.metrics.BatchSize.Observe(float64(len(inputs)))

	results := make([]domain.UpsertResult, 0, len(inputs))
	created := 0
	for i, in := range inputs {
		res, err := s.sessions.Upsert(ctx, in.ToSession(userID))
		if err != nil {
			s.metrics.SessionsIngested.WithLabelValues("error").Inc()
			if len(results) > 0 {
				invalidateSummaries(ctx, s.cache)
			}
			return nil, fmt.Errorf("failed to store session %d of %d: %w", i+1, len(inputs), err)
		}

		if res.Created {
			created++
			s.metrics.SessionsIngested.WithLabelValues("created").Inc()
		} else {
			s.metrics.SessionsIngested.WithLabelValues("updated").Inc()
		}
		results = append(results, res)
	}

	invalidateSummaries(ctx, s.cache)

	slog.DebugContext(ctx, "Screen sessions ingested",
		"count", len(results),
		"created", created,
		"attributed", userID != nil)
	return results, nil
}

// invalidateSummaries drops cached summaries. Failures only delay freshness
// until the TTL runs out, so they are logged and swallowed.
func invalidateSummaries(ctx context.Context, cache domain.SummaryCache) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate summary cache", "error", err)
	}
}
