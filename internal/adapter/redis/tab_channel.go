package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/screentime/internal/tracker"
)

const tabMessageBuffer = 16

func tabChannelName(origin string) string {
	return "screentime:tabs:" + origin
}

// TabChannel broadcasts tab election messages over Redis pub/sub so tabs in
// different processes can elect one syncing leader per origin.
type TabChannel struct {
	rdb     *goredis.Client
	channel string
}

var _ tracker.Channel = (*TabChannel)(nil)

func NewTabChannel(rdb *goredis.Client, origin string) *TabChannel {
	return &TabChannel{rdb: rdb, channel: tabChannelName(origin)}
}

func (c *TabChannel) Publish(ctx context.Context, msg tracker.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal tab message: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish tab message: %w", err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed so no message
// published afterwards is missed. The stream closes when ctx ends or the
// returned func is called.
func (c *TabChannel) Subscribe(ctx context.Context) (<-chan tracker.Message, func(), error) {
	sub := c.rdb.Subscribe(ctx, c.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("%w: %w", tracker.ErrChannelUnavailable, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan tracker.Message, tabMessageBuffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(ch)
		defer func() { _ = sub.Close() }()
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var m tracker.Message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					slog.Warn("Failed to unmarshal tab message", "channel", c.channel, "error", err)
					continue
				}
				select {
				case ch <- m:
				default:
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return ch, unsubscribe, nil
}
