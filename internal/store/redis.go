package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore holds the connection shared by the notice circuit breaker and
// rate limiter. Records are never kept in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to redisURL. An empty URL disables Redis and returns nil.
func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

// Client returns the underlying client, or nil when Redis is disabled.
func (s *RedisStore) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}
