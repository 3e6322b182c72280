package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace-chat/internal/events"
	chatredis "marketplace-chat/internal/redis"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

// RedisDialer speaks to the backend through Redis pub/sub: inbound events
// arrive on channel:user:<id>, intents are published to channel:outbound:<id>.
type RedisDialer struct {
	Client *goredis.Client
	UserID string
	Logger *logger.Logger
}

func (d *RedisDialer) Dial(ctx context.Context) (Conn, error) {
	if d.UserID == "" {
		return nil, fmt.Errorf("%w: redis transport requires a user id", chat_errors.ErrUnauthorized)
	}
	if err := d.Client.Ping(ctx).Err(); err != nil {
		return nil, chat_errors.Network(err)
	}
	sub, err := chatredis.NewSubscriber(d.Client).Open(ctx, events.UserChannel(d.UserID))
	if err != nil {
		return nil, chat_errors.Network(err)
	}
	l := d.Logger
	if l == nil {
		l = logger.NewNop()
	}
	return &redisConn{
		sub:       sub,
		publisher: chatredis.NewPublisher(d.Client),
		outbound:  events.OutboundChannel(d.UserID),
		logger:    l,
	}, nil
}

type redisConn struct {
	sub       *goredis.PubSub
	publisher *chatredis.Publisher
	outbound  string
	logger    *logger.Logger
}

func (c *redisConn) ReadEnvelope(ctx context.Context) (events.Envelope, error) {
	for {
		msg, err := c.sub.ReceiveMessage(ctx)
		if err != nil {
			return events.Envelope{}, chat_errors.Network(err)
		}
		var env events.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			c.logger.Warnf("skipping malformed event on %s: %v", msg.Channel, err)
			continue
		}
		return env, nil
	}
}

func (c *redisConn) WriteIntent(ctx context.Context, in events.Intent) error {
	if err := c.publisher.PublishJSON(ctx, c.outbound, in); err != nil {
		return chat_errors.Network(err)
	}
	return nil
}

func (c *redisConn) Close() error {
	return c.sub.Close()
}
