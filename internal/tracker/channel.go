package tracker

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelUnavailable is returned when no cross-tab broadcast is possible.
var ErrChannelUnavailable = errors.New("tab channel unavailable")

type MessageType string

const (
	WhoIsLeader MessageType = "who_is_leader"
	IAmLeader   MessageType = "i_am_leader"
)

// Message is broadcast between tabs of one origin.
type Message struct {
	Type MessageType `json:"type"`
	From string      `json:"from"`
}

// Channel is a best-effort broadcast shared by the tabs of one origin.
// Subscribers may receive their own messages.
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe returns a message stream and a func that ends the subscription.
	Subscribe(ctx context.Context) (<-chan Message, func(), error)
}

const subscriberBuffer = 16

// LocalHub is an in-process Channel for tabs living in one process.
type LocalHub struct {
	mu     sync.Mutex
	subs   map[int]chan Message
	nextID int
	closed bool
}

func NewLocalHub() *LocalHub {
	return &LocalHub{subs: make(map[int]chan Message)}
}

// Publish fans msg out to every subscriber. A subscriber that is not keeping
// up misses the message, like a lossy broadcast.
func (h *LocalHub) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrChannelUnavailable
	}
	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (h *LocalHub) Subscribe(context.Context) (<-chan Message, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, ErrChannelUnavailable
	}

	id := h.nextID
	h.nextID++
	ch := make(chan Message, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
	return ch, unsubscribe, nil
}

// Close ends every subscription; later calls fail with ErrChannelUnavailable.
func (h *LocalHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
