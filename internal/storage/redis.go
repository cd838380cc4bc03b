package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for geofence state.
const redisKeyPrefix = "geofence:"

// Redis stores keys as plain strings without expiry.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// OpenRedis parses a redis:// URL, connects, and pings the server.
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client), nil
}

func (r *Redis) Store(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis store %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis load %s: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
