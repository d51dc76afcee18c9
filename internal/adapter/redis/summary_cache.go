package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/screentime/internal/adapter/metrics"
	"github.com/pscheid92/screentime/internal/domain"
)

const (
	summaryGenerationKey = "screentime:summary:gen"
	summaryKeyPrefix     = "screentime:summary:"
)

// SummaryCache keeps computed summaries in Redis. Every entry key embeds the
// current generation, so Invalidate orphans all entries with one INCR and
// the orphans expire on their own TTL.
type SummaryCache struct {
	rdb     goredis.Cmdable
	metrics *metrics.CacheMetrics
}

var _ domain.SummaryCache = (*SummaryCache)(nil)

func NewSummaryCache(rdb goredis.Cmdable, m *metrics.CacheMetrics) *SummaryCache {
	return &SummaryCache{rdb: rdb, metrics: m}
}

func (c *SummaryCache) Get(ctx context.Context, q domain.SummaryQuery) (*domain.Summary, domain.CacheGeneration, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.metrics.Errors.WithLabelValues("get").Inc()
		return nil, 0, err
	}

	data, err := c.rdb.Get(ctx, summaryKey(gen, q)).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.metrics.Misses.Inc()
		return nil, gen, domain.ErrCacheMiss
	}
	if err != nil {
		c.metrics.Errors.WithLabelValues("get").Inc()
		return nil, 0, fmt.Errorf("failed to read cached summary: %w", err)
	}

	var s domain.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		c.metrics.Errors.WithLabelValues("get").Inc()
		return nil, 0, fmt.Errorf("failed to decode cached summary: %w", err)
	}

	c.metrics.Hits.Inc()
	return &s, gen, nil
}

// Set stores s under gen. When an invalidation happened since gen was read,
// the entry lands under the old generation and only waits out its TTL.
func (c *SummaryCache) Set(ctx context.Context, gen domain.CacheGeneration, q domain.SummaryQuery, s *domain.Summary, ttl time.Duration) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	if err := c.rdb.Set(ctx, summaryKey(gen, q), encoded, ttl).Err(); err != nil {
		c.metrics.Errors.WithLabelValues("set").Inc()
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	return nil
}

func (c *SummaryCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, summaryGenerationKey).Err(); err != nil {
		c.metrics.Errors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("failed to bump summary generation: %w", err)
	}
	c.metrics.Invalidations.Inc()
	return nil
}

func (c *SummaryCache) generation(ctx context.Context) (domain.CacheGeneration, error) {
	gen, err := c.rdb.Get(ctx, summaryGenerationKey).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, fmt.Errorf("failed to read summary generation: %w", err)
	}
	return domain.CacheGeneration(gen), nil
}

func summaryKey(gen domain.CacheGeneration, q domain.SummaryQuery) string {
	return summaryKeyPrefix + strconv.FormatInt(int64(gen), 10) + ":" + q.Scope() + ":" + strconv.Itoa(q.Days)
}
