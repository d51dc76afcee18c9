package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/pscheid92/screentime/internal/adapter/redis"
	"github.com/pscheid92/screentime/internal/platform/config"
	"github.com/pscheid92/screentime/internal/platform/logging"
	"github.com/pscheid92/screentime/internal/tracker"
)

var (
	simServer       string
	simTabs         int
	simDuration     time.Duration
	simRedis        string
	simOrigin       string
	simSyncInterval time.Duration
	simIdleTimeout  time.Duration
)

var simulatedPages = []tracker.Page{
	{URL: "/courses/algebra", Title: "Algebra", Category: "learning"},
	{URL: "/courses/biology", Title: "Biology", Category: "learning"},
	{URL: "/assignments", Title: "Assignments", Category: "productivity"},
	{URL: "/calendar", Title: "Calendar", Category: "productivity"},
	{URL: "/forum", Title: "Forum", Category: "social"},
	{URL: "/messages", Title: "Messages", Category: "social"},
	{URL: "/settings", Title: "Settings"},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive simulated browser tabs against a running server",
	Long: `Starts several simulated tabs of one origin. Tabs elect a leader over a
local hub, or over Redis pub/sub with --redis so tabs in different processes
coordinate. Every tab records synthetic activity; only the leader syncs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if simTabs < 1 {
			return fmt.Errorf("--tabs must be at least 1")
		}

		cfg, err := config.LoadTool(false)
		if err != nil {
			return err
		}
		logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

		ctx, cancel := context.WithTimeout(cmd.Context(), simDuration)
		defer cancel()

		channel, closeChannel, err := simulationChannel(ctx)
		if err != nil {
			return err
		}
		defer closeChannel()

		sim := &simulation{
			clock:   clockwork.NewRealClock(),
			sender:  tracker.NewHTTPSender(simServer, nil),
			channel: channel,
		}
		if err := sim.run(ctx, simTabs); err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "simulated %d tabs for %s, leaders: %v, unsent on followers: %d\n",
			simTabs, simDuration, sim.leaders(), sim.unsent())
		return err
	},
}

func simulationChannel(ctx context.Context) (tracker.Channel, func(), error) {
	if simRedis == "" {
		hub := tracker.NewLocalHub()
		return hub, hub.Close, nil
	}

	rdb, err := redis.NewClient(ctx, simRedis)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewTabChannel(rdb, simOrigin), func() { _ = rdb.Close() }, nil
}

type simulation struct {
	clock   clockwork.Clock
	sender  *tracker.HTTPSender
	channel tracker.Channel

	tabs []*simulatedTab
}

// simulatedTab owns its buffer: a follower's sessions stay local and are
// never sent, as in a browser tab that loses the election.
type simulatedTab struct {
	id       string
	buffer   *tracker.Buffer
	tracker  *tracker.Tracker
	election *tracker.Election
}

// run opens tabs one after another, so the first one wins the election, then
// drives them until ctx ends and unloads each.
func (s *simulation) run(ctx context.Context, tabs int) error {
	var wg sync.WaitGroup

	for range tabs {
		tab := &simulatedTab{id: uuid.NewString(), buffer: tracker.NewBuffer()}
		tab.election = tracker.NewElection(tab.id, s.channel, s.clock)
		if err := tab.election.Start(ctx); err != nil {
			return err
		}
		tab.tracker = tracker.NewTracker(tab.id, s.clock,
			tracker.WithBuffer(tab.buffer),
			tracker.WithInactivityTimeout(simIdleTimeout),
			tracker.WithAnonymized(true),
		)
		s.tabs = append(s.tabs, tab)

		syncer := tracker.NewSyncer(tab.buffer, s.sender, tab.election, s.clock, tracker.WithSyncInterval(simSyncInterval))
		wg.Go(func() { tab.tracker.Run(ctx) })
		wg.Go(func() { syncer.Run(ctx) })
		wg.Go(func() { s.browse(ctx, tab) })
	}

	wg.Wait()
	for _, tab := range s.tabs {
		tab.tracker.Unload(context.Background())
		tab.election.Stop()
	}
	return s.flush()
}

// flush sends what the leader tabs left behind. A browser would beacon it;
// the process is about to exit, so the send is synchronous here.
func (s *simulation) flush() error {
	for _, tab := range s.tabs {
		if !tab.election.IsLeader() {
			continue
		}
		batch := tab.buffer.DrainAll()
		if len(batch) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.sender.Send(ctx, batch)
		cancel()
		if err != nil {
			tab.buffer.Requeue(batch)
			return fmt.Errorf("final flush of tab %s: %w", tab.id, err)
		}
	}
	return nil
}

func (s *simulation) leaders() []string {
	var ids []string
	for _, tab := range s.tabs {
		if tab.election.IsLeader() {
			ids = append(ids, tab.id)
		}
	}
	return ids
}

// unsent counts sessions still held by follower tabs.
func (s *simulation) unsent() int {
	n := 0
	for _, tab := range s.tabs {
		if !tab.election.IsLeader() {
			n += tab.buffer.Len()
		}
	}
	return n
}

// browse opens the tab on a page, then produces page views with occasional
// pauses and hidden phases.
func (s *simulation) browse(ctx context.Context, tab *simulatedTab) {
	t := tab.tracker
	t.Activity(simulatedPages[0])
	for {
		switch r := rand.IntN(10); {
		case r < 7:
			t.Activity(simulatedPages[rand.IntN(len(simulatedPages))])
		case r < 9:
			// idle
		default:
			t.Hidden()
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(time.Duration(1+rand.IntN(4)) * time.Second):
		}
		slog.Debug("Simulated tab tick", "tab", tab.id, "active", t.Active(), "buffered", tab.buffer.Len())
	}
}

func init() {
	simulateCmd.Flags().StringVar(&simServer, "server", "http://localhost:8080", "Base URL of the screen-time server")
	simulateCmd.Flags().IntVar(&simTabs, "tabs", 3, "Number of simulated tabs")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", time.Minute, "How long to simulate")
	simulateCmd.Flags().StringVar(&simRedis, "redis", "", "Redis URL for cross-process tab coordination")
	simulateCmd.Flags().StringVar(&simOrigin, "origin", "localhost", "Origin name tabs coordinate under")
	simulateCmd.Flags().DurationVar(&simSyncInterval, "sync-interval", tracker.DefaultSyncInterval, "Leader sync interval")
	simulateCmd.Flags().DurationVar(&simIdleTimeout, "idle-timeout", tracker.DefaultInactivityTimeout, "Inactivity timeout per tab")
	rootCmd.AddCommand(simulateCmd)
}
