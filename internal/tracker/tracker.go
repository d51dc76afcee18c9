package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/screentime/internal/domain"
)

const (
	DefaultInactivityTimeout = 30 * time.Second
	DefaultCheckInterval     = 5 * time.Second
)

// Page describes what the tab is showing when activity starts a session.
type Page struct {
	URL      string
	Title    string
	Category string
}

// Beacon hands a batch to a fire-and-forget transport that may outlive the tab.
type Beacon interface {
	Beacon(ctx context.Context, batch []domain.SessionInput)
}

type TrackerOption func(*Tracker)

func WithInactivityTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.inactivityTimeout = d }
}

func WithCheckInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.checkInterval = d }
}

// WithBuffer shares a buffer, e.g. with a Syncer.
func WithBuffer(b *Buffer) TrackerOption {
	return func(t *Tracker) { t.buffer = b }
}

// WithAnonymized marks every produced record as anonymized.
func WithAnonymized(anonymized bool) TrackerOption {
	return func(t *Tracker) { t.anonymized = anonymized }
}

func WithBeacon(b Beacon) TrackerOption {
	return func(t *Tracker) { t.beacon = b }
}

type openSession struct {
	id        string
	page      Page
	startedAt time.Time
}

// Tracker captures activity in one tab. Activity opens a session, hiding the
// tab, inactivity or unload closes it.
type Tracker struct {
	tabID             string
	clock             clockwork.Clock
	inactivityTimeout time.Duration
	checkInterval     time.Duration
	buffer            *Buffer
	anonymized        bool
	beacon            Beacon

	mu           sync.Mutex
	current      *openSession
	lastActivity time.Time
}

func NewTracker(tabID string, clock clockwork.Clock, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		tabID:             tabID,
		clock:             clock,
		inactivityTimeout: DefaultInactivityTimeout,
		checkInterval:     DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.buffer == nil {
		t.buffer = NewBuffer()
	}
	return t
}

func (t *Tracker) Buffer() *Buffer { return t.buffer }

// Active reports whether a session is open.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Activity records a mouse move or key press. It opens a session if none is
// open; page metadata comes from the activity that opened it.
func (t *Tracker) Activity(p Page) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.lastActivity = now
	if t.current != nil {
		return
	}
	t.current = &openSession{id: uuid.NewString(), page: p, startedAt: now}
	slog.Debug("Screen session started", "tab", t.tabID, "session_id", t.current.id)
}

// Hidden closes the open session when the tab is hidden.
func (t *Tracker) Hidden() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLocked("hidden")
}

// Unload closes the open session and flushes the whole buffer through the
// beacon. Without a beacon the records stay buffered for the next sender.
func (t *Tracker) Unload(ctx context.Context) {
	t.mu.Lock()
	t.endLocked("unload")
	t.mu.Unlock()

	if t.beacon == nil {
		return
	}
	batch := t.buffer.DrainAll()
	if len(batch) == 0 {
		return
	}
	t.beacon.Beacon(ctx, batch)
}

// Run closes idle sessions on every check until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.checkIdle()
		}
	}
}

func (t *Tracker) checkIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return
	}
	if t.clock.Since(t.lastActivity) >= t.inactivityTimeout {
		t.endLocked("inactive")
	}
}

func (t *Tracker) endLocked(reason string) {
	if t.current == nil {
		return
	}
	s := t.current
	t.current = nil

	endedAt := t.clock.Now()
	t.buffer.Push(domain.SessionInput{
		SessionID:  s.id,
		URL:        s.page.URL,
		Title:      s.page.Title,
		Category:   s.page.Category,
		StartedAt:  s.startedAt.UTC(),
		EndedAt:    endedAt.UTC(),
		Duration:   domain.SessionDuration(s.startedAt, endedAt),
		Anonymized: t.anonymized,
	})
	slog.Debug("Screen session ended", "tab", t.tabID, "session_id", s.id, "reason", reason)
}
