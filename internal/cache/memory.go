package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Cache with in-memory storage
type MemoryCache[T any] struct {
	items map[string]Item[T]
	mu    sync.RWMutex
	now   func() time.Time
}

func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]Item[T]),
		now:   time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (c *MemoryCache[T]) WithClock(now func() time.Time) *MemoryCache[T] {
	c.now = now
	return c
}

func (c *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var exp *time.Time
	if ttl > 0 {
		expTime := c.now().Add(ttl)
		exp = &expTime
	}

	c.items[key] = Item[T]{
		Value:      value,
		Expiration: exp,
	}
	return nil
}

func (c *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	var zero T

	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return zero, ErrKeyNotFound
	}

	if item.Expiration != nil && c.now().After(*item.Expiration) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return zero, ErrKeyNotFound
	}

	return item.Value, nil
}

func (c *MemoryCache[T]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

func (c *MemoryCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
