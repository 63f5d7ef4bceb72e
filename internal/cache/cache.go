package cache

import (
	"context"
	"errors"
	"time"
)

// Item is a cached value with an optional expiry.
type Item[T any] struct {
	Value      T
	Expiration *time.Time
}

// Cache is the contract shared by the in-memory and Redis backends.
type Cache[T any] interface {
	// Set stores value under key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// Get returns ErrKeyNotFound for missing or expired keys.
	Get(ctx context.Context, key string) (T, error)

	Delete(ctx context.Context, key string) error
}

var (
	ErrKeyNotFound = errors.New("key not found in cache")
	ErrInvalidKey  = errors.New("invalid key")
)
