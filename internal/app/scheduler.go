package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/screentime/internal/adapter/metrics"
	"github.com/pscheid92/screentime/internal/domain"
	"github.com/pscheid92/screentime/internal/platform/correlation"
)

const purgeTimeout = 5 * time.Minute

// Lease is a cluster-wide lock held by at most one instance.
type Lease interface {
	TryAcquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}

// RetentionScheduler runs a purge on a fixed interval. With a lease, only
// the instance holding it purges; leadership sticks until the lease is lost.
type RetentionScheduler struct {
	purger   domain.RetentionService
	policy   domain.RetentionPolicy
	interval time.Duration
	lease    Lease
	clock    clockwork.Clock
	metrics  *metrics.RetentionMetrics

	leading bool
}

// NewRetentionScheduler creates a scheduler. lease may be nil for single-instance deployments.
func NewRetentionScheduler(purger domain.RetentionService, policy domain.RetentionPolicy, interval time.Duration, lease Lease, clock clockwork.Clock, m *metrics.RetentionMetrics) *RetentionScheduler {
	return &RetentionScheduler{
		purger:   purger,
		policy:   policy,
		interval: interval,
		lease:    lease,
		clock:    clock,
		metrics:  m,
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables the scheduler.
func (s *RetentionScheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		slog.Info("Retention scheduler disabled")
		return
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.resign()

	slog.Info("Retention scheduler started", "interval", s.interval, "days", s.policy.Days, "anonymized_only", s.policy.AnonymizedOnly)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *RetentionScheduler) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(correlation.WithID(ctx, correlation.NewID()), purgeTimeout)
	defer cancel()

	if !s.holdLease(runCtx) {
		s.metrics.Runs.WithLabelValues("skipped").Inc()
		slog.DebugContext(runCtx, "Retention purge skipped, not leader")
		return
	}

	if _, err := s.purger.Purge(runCtx, s.policy); err != nil {
		slog.ErrorContext(runCtx, "Scheduled retention purge failed", "error", err)
	}
}

func (s *RetentionScheduler) holdLease(ctx context.Context) bool {
	if s.lease == nil {
		return true
	}

	if s.leading {
		err := s.lease.Renew(ctx)
		if err == nil {
			return true
		}
		if !errors.Is(err, ErrNotLeader) {
			slog.WarnContext(ctx, "Failed to renew retention lease", "error", err)
		}
		s.setLeading(false)
	}

	ok, err := s.lease.TryAcquire(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to acquire retention lease", "error", err)
		return false
	}
	s.setLeading(ok)
	return ok
}

func (s *RetentionScheduler) setLeading(leading bool) {
	if s.leading != leading {
		slog.Info("Retention leadership changed", "leader", leading)
	}
	s.leading = leading
	if leading {
		s.metrics.LeaderStatus.Set(1)
	} else {
		s.metrics.LeaderStatus.Set(0)
	}
}

func (s *RetentionScheduler) resign() {
	if s.lease == nil || !s.leading {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.lease.Release(ctx); err != nil {
		slog.Warn("Failed to release retention lease", "error", err)
	}
	s.setLeading(false)
}
