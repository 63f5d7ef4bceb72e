package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on Redis, storing values as JSON under a
// key prefix.
type RedisCache[T any] struct {
	client *redis.Client
	prefix string
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, connectionString string) (*redis.Client, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisCache[T any](client *redis.Client, prefix string) *RedisCache[T] {
	return &RedisCache[T]{client: client, prefix: prefix}
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var value T

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, ErrKeyNotFound
		}
		return value, err
	}

	if err := json.Unmarshal(data, &value); err != nil {
		return value, err
	}
	return value, nil
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
