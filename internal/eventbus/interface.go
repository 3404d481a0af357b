package eventbus

import "context"

type EventBus interface {
	Publish(ctx context.Context, clientID string, event Event) error
	Subscribe(ctx context.Context, clientID string) (<-chan Event, error)
}
