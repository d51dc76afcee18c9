package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultElectionTimeout is how long a tab waits for an existing leader to answer.
const DefaultElectionTimeout = 200 * time.Millisecond

type ElectionOption func(*Election)

func WithElectionTimeout(d time.Duration) ElectionOption {
	return func(e *Election) { e.timeout = d }
}

// Election decides whether this tab syncs for its origin. It is advisory:
// two tabs starting inside the same window can both become leader.
// A follower never runs another election.
type Election struct {
	tabID   string
	channel Channel
	clock   clockwork.Clock
	timeout time.Duration

	leader atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewElection creates an election for tabID. A nil channel means the
// environment has no cross-tab broadcast.
func NewElection(tabID string, channel Channel, clock clockwork.Clock, opts ...ElectionOption) *Election {
	e := &Election{
		tabID:   tabID,
		channel: channel,
		clock:   clock,
		timeout: DefaultElectionTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Election) IsLeader() bool {
	return e.leader.Load()
}

// Start asks for a leader and waits up to the election timeout for an answer.
// Without an answer the tab takes over. When broadcast is unavailable the tab
// leads unconditionally. A leader keeps answering newcomers until Stop or
// until ctx is cancelled.
func (e *Election) Start(ctx context.Context) error {
	if e.channel == nil {
		e.assumeLeadership(ErrChannelUnavailable)
		return nil
	}

	msgs, unsubscribe, err := e.channel.Subscribe(ctx)
	if err != nil {
		e.assumeLeadership(err)
		return nil
	}

	if err := e.channel.Publish(ctx, Message{Type: WhoIsLeader, From: e.tabID}); err != nil {
		slog.WarnContext(ctx, "Failed to ask for tab leader", "tab", e.tabID, "error", err)
	}

	timer := e.clock.NewTimer(e.timeout)
	defer timer.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			unsubscribe()
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				e.assumeLeadership(ErrChannelUnavailable)
				return nil
			}
			if msg.From != e.tabID && msg.Type == IAmLeader {
				slog.DebugContext(ctx, "Tab is follower", "tab", e.tabID, "leader", msg.From)
				unsubscribe()
				return nil
			}
		case <-timer.Chan():
			break wait
		}
	}

	e.leader.Store(true)
	slog.InfoContext(ctx, "Tab elected leader", "tab", e.tabID)
	e.announce(ctx)

	listenCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Go(func() {
		defer unsubscribe()
		e.answer(listenCtx, msgs)
	})
	return nil
}

// Stop ends the leader's answering loop. Leadership is not handed over.
func (e *Election) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Election) answer(ctx context.Context, msgs <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.From != e.tabID && msg.Type == WhoIsLeader {
				e.announce(ctx)
			}
		}
	}
}

func (e *Election) announce(ctx context.Context) {
	if err := e.channel.Publish(ctx, Message{Type: IAmLeader, From: e.tabID}); err != nil {
		slog.WarnContext(ctx, "Failed to announce tab leadership", "tab", e.tabID, "error", err)
	}
}

func (e *Election) assumeLeadership(reason error) {
	e.leader.Store(true)
	slog.Warn("Tab channel unavailable, assuming leadership", "tab", e.tabID, "reason", reason)
}
