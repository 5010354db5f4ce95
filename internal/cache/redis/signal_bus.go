package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

const (
	// DefaultStreamMaxLen is the approximate stream length kept by XADD MAXLEN ~.
	DefaultStreamMaxLen int64 = 10000

	payloadField = "payload"
)

// SignalBus implements domain.SignalBus. Ledger, trade, order and feed-status
// events go out over Pub/Sub for live listeners; ledger updates are also
// appended to a capped stream so late readers can replay them.
type SignalBus struct {
	rdb    *redis.Client
	maxLen int64
}

// NewSignalBus creates a SignalBus. A non-positive maxLen uses
// DefaultStreamMaxLen.
func NewSignalBus(c *Client, maxLen int64) *SignalBus {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &SignalBus{rdb: c.Underlying(), maxLen: maxLen}
}

// Publish fans payload out to the live listeners of channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on channel, or on a glob pattern such as "ch:*", until
// ctx is cancelled. The returned channel is closed when the subscription
// ends. A slow reader applies backpressure to the relay goroutine only.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuffer)
	go relay(ctx, pubsub, out)
	return out, nil
}

// subscribeBuffer is the per-subscription queue between Redis and the reader.
const subscribeBuffer = 128

func relay(ctx context.Context, pubsub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer pubsub.Close()

	in := pubsub.Channel()
	for {
		var msg *redis.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			msg = m
		}
		select {
		case out <- []byte(msg.Payload):
		case <-ctx.Done():
			return
		}
	}
}

// hasPattern reports whether channel contains glob wildcards.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// StreamAppend appends a payload to a Redis stream, trimming it to roughly
// the configured length.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: sb.maxLen,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID ("0" replays from
// the start). It does not block; an empty stream yields no entries and no
// error. Entries without a payload field are skipped.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			if m, ok := streamMessage(msg); ok {
				messages = append(messages, m)
			}
		}
	}
	return messages, nil
}

func streamMessage(msg redis.XMessage) (domain.StreamMessage, bool) {
	var data []byte
	switch v := msg.Values[payloadField].(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return domain.StreamMessage{}, false
	}
	return domain.StreamMessage{ID: msg.ID, Payload: data}, true
}

var _ domain.SignalBus = (*SignalBus)(nil)
