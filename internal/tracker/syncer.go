package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/screentime/internal/domain"
)

const (
	DefaultSyncInterval = 15 * time.Second
	DefaultBatchSize    = 20
)

// Sender delivers a batch to the ingest endpoint.
type Sender interface {
	Send(ctx context.Context, batch []domain.SessionInput) error
}

// Leadership reports whether this tab may sync.
type Leadership interface {
	IsLeader() bool
}

type SyncerOption func(*Syncer)

func WithSyncInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) { s.interval = d }
}

func WithBatchSize(n int) SyncerOption {
	return func(s *Syncer) { s.batchSize = n }
}

// Syncer periodically sends one batch from the buffer while the tab leads.
// A failed batch goes back to the front of the buffer for the next interval.
type Syncer struct {
	buffer    *Buffer
	sender    Sender
	leader    Leadership
	clock     clockwork.Clock
	interval  time.Duration
	batchSize int
}

func NewSyncer(buffer *Buffer, sender Sender, leader Leadership, clock clockwork.Clock, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		buffer:    buffer,
		sender:    sender,
		leader:    leader,
		clock:     clock,
		interval:  DefaultSyncInterval,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Syncer) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.Flush(ctx); err != nil {
				slog.WarnContext(ctx, "Screen session sync failed, will retry next interval", "pending", s.buffer.Len(), "error", err)
			}
		}
	}
}

// Flush sends at most one batch. Followers send nothing.
func (s *Syncer) Flush(ctx context.Context) error {
	if !s.leader.IsLeader() {
		return nil
	}

	batch := s.buffer.Drain(s.batchSize)
	if len(batch) == 0 {
		return nil
	}

	if err := s.sender.Send(ctx, batch); err != nil {
		s.buffer.Requeue(batch)
		return err
	}

	slog.DebugContext(ctx, "Screen sessions synced", "count", len(batch), "pending", s.buffer.Len())
	return nil
}
