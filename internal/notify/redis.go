package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel dashboard processes subscribe to.
const DefaultChannel = "webhook_events"

// RedisNotifier publishes messages on a Redis pub/sub channel. Redis pub/sub
// has exactly the delivery contract we want: messages go to whoever is
// subscribed right now and are dropped otherwise.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Broadcast(ctx context.Context, msg Message) error {
	if n.rdb == nil {
		return fmt.Errorf("notify: redis client is nil")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, b).Err(); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}
