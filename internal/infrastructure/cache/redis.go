// Package cache owns the shared Redis client and the distributed lock built on it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLockHeld is returned by WithLock when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another instance")

// RedisClient wraps the go-redis client together with a redsync pool.
type RedisClient struct {
	client *redis.Client
	rs     *redsync.Redsync
	log    zerolog.Logger
}

// NewRedisClient connects to redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string, log zerolog.Logger) (*RedisClient, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log = log.With().Str("component", "redis").Logger()
	log.Info().Str("addr", opts.Addr).Msg("connected to redis")
	return &RedisClient{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		log:    log,
	}, nil
}

// Client returns the underlying go-redis client.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// WithLock runs fn while holding the named lock. It does not wait: a lock held elsewhere
// returns ErrLockHeld.
func (r *RedisClient) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	mutex := r.rs.NewMutex(name, redsync.WithExpiry(ttl), redsync.WithTries(1))

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return ErrLockHeld
		}
		return err
	}

	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			r.log.Error().Err(err).Str("lock", name).Msg("failed to unlock mutex")
		}
	}()

	return fn(ctx)
}

// HealthCheck pings Redis.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *RedisClient) Close() error {
	return r.client.Close()
}
