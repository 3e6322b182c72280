package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Open subscribes to channels and waits for the server to confirm before
// returning, so no message published afterwards is missed.
func (s *Subscriber) Open(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	sub := s.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}
