package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/screentime/internal/adapter/metrics"
	"github.com/pscheid92/screentime/internal/domain"
)

// --- Mock implementations ---

type mockSessionRepo struct {
	upsertFn              func(ctx context.Context, s domain.ScreenSession) (domain.UpsertResult, error)
	listSinceFn           func(ctx context.Context, since time.Time, userID *string) ([]domain.ScreenSession, error)
	deleteCreatedBeforeFn func(ctx context.Context, cutoff time.Time, anonymizedOnly bool) (int64, error)
}

func (m *mockSessionRepo) Upsert(ctx context.Context, s domain.ScreenSession) (domain.UpsertResult, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, s)
	}
	return domain.UpsertResult{ID: uuid.New(), Created: true}, nil
}

func (m *mockSessionRepo) ListSince(ctx context.Context, since time.Time, userID *string) ([]domain.ScreenSession, error) {
	if m.listSinceFn != nil {
		return m.listSinceFn(ctx, since, userID)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time, anonymizedOnly bool) (int64, error) {
	if m.deleteCreatedBeforeFn != nil {
		return m.deleteCreatedBeforeFn(ctx, cutoff, anonymizedOnly)
	}
	return 0, fmt.Errorf("not implemented")
}

// memoryCache is a generation-keyed SummaryCache backed by a map, with
// optional forced errors.
type memoryCache struct {
	mu          sync.Mutex
	gen         domain.CacheGeneration
	entries     map[string]domain.Summary
	invalidated int
	getErr      error
	setErr      error
	invErr      error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]domain.Summary)}
}

func cacheKey(gen domain.CacheGeneration, q domain.SummaryQuery) string {
	return fmt.Sprintf("%d:%s:%d", gen, q.Scope(), q.Days)
}

func (c *memoryCache) Get(_ context.Context, q domain.SummaryQuery) (*domain.Summary, domain.CacheGeneration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, 0, c.getErr
	}
	s, ok := c.entries[cacheKey(c.gen, q)]
	if !ok {
		return nil, c.gen, domain.ErrCacheMiss
	}
	return &s, c.gen, nil
}

func (c *memoryCache) Set(_ context.Context, gen domain.CacheGeneration, q domain.SummaryQuery, s *domain.Summary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[cacheKey(gen, q)] = *s
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	if c.invErr != nil {
		return c.invErr
	}
	c.gen++
	return nil
}

type mockLease struct {
	mu         sync.Mutex
	acquire    bool
	acquireErr error
	renewErr   error
	acquires   int
	renews     int
	releases   int
}

func (m *mockLease) TryAcquire(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	return m.acquire, m.acquireErr
}

func (m *mockLease) Renew(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renews++
	return m.renewErr
}

func (m *mockLease) Release(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	return nil
}

type mockPurger struct {
	calls chan domain.RetentionPolicy
	err   error
}

func (m *mockPurger) Purge(_ context.Context, p domain.RetentionPolicy) (int64, error) {
	m.calls <- p
	return 0, m.err
}

func newTestIngestMetrics() *metrics.IngestMetrics {
	return metrics.NewIngestMetrics(prometheus.NewRegistry())
}

func newTestRetentionMetrics() *metrics.RetentionMetrics {
	return metrics.NewRetentionMetrics(prometheus.NewRegistry())
}
