package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

var _ EventBus = (*RedisBus)(nil)

// RedisBus publishes client lifecycle transitions (created, reused,
// recycled, pool-claimed, reaped) so external observers — a dashboard, an
// admin tool — can watch orchestration activity without polling /status.
type RedisBus struct {
	client redis.Cmdable
	logger *slog.Logger
}

func NewRedisBus(client redis.Cmdable, logger *slog.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger.With(slog.String("component", "eventbus"))}
}

func (b *RedisBus) Publish(ctx context.Context, clientID string, event Event) error {
	channelKey := ClientChannelKey(clientID)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return b.client.Publish(ctx, channelKey, data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, clientID string) (<-chan Event, error) {
	channelKey := ClientChannelKey(clientID)
	client, ok := b.client.(*redis.Client)
	if !ok {
		return nil, fmt.Errorf("invalid redis client type")
	}

	pubSub := client.Subscribe(ctx, channelKey)
	ch := make(chan Event)

	go func() {
		defer close(ch)
		defer func() {
			if err := pubSub.Close(); err != nil {
				b.logger.Error("failed to close pubsub", "error", err)
			}
		}()

		for msg := range pubSub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("failed to unmarshal event", "error", err)
				continue
			}
			ch <- event
		}
	}()

	return ch, nil
}
