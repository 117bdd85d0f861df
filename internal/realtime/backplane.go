package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/suteetoe/shopdash/pkg/logger"
	"go.uber.org/zap"
)

// DefaultFanoutChannel is the pub/sub channel shared by every instance
const DefaultFanoutChannel = "shopdash:fanout"

// RedisBackplane relays broadcasts through redis pub/sub so every instance
// delivers to its own connected clients
type RedisBackplane struct {
	rdb     *redis.Client
	channel string
}

// NewRedisBackplane creates a backplane on channel
func NewRedisBackplane(rdb *redis.Client, channel string) *RedisBackplane {
	if channel == "" {
		channel = DefaultFanoutChannel
	}
	return &RedisBackplane{rdb: rdb, channel: channel}
}

func (b *RedisBackplane) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed. The channel closes when ctx ends.
func (b *RedisBackplane) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Envelope, 256)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logger.FromContext(ctx).Warn("Skipping malformed fan-out message", zap.Error(err))
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
