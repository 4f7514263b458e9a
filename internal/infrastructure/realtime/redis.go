package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRelay fans envelopes out over a Redis pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	log     zerolog.Logger
}

// NewRedisRelay uses an existing client. The caller owns the client.
func NewRedisRelay(client *redis.Client, channel string, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "redis-relay").Logger(),
	}
}

func (r *RedisRelay) Name() string { return "redis" }

func (r *RedisRelay) Publish(ctx context.Context, data []byte) error {
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Subscribe confirms the subscription before returning, then drains messages until ctx ends
// or Close is called.
func (r *RedisRelay) Subscribe(ctx context.Context, handler func(data []byte)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	r.pubsub = pubsub

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (r *RedisRelay) Close() error {
	if r.pubsub == nil {
		return nil
	}
	return r.pubsub.Close()
}
