package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache[int]().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "forever", 2, 0))

	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	v, err = c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheRejectsEmptyKey(t *testing.T) {
	c := NewMemoryCache[string]()
	assert.ErrorIs(t, c.Set(context.Background(), "", "x", 0), ErrInvalidKey)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache[string]()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 0))

	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestRedisCacheRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisCache[payload](client, "test:")
	require.NoError(t, c.Set(ctx, "p", payload{Name: "x", Count: 3}, time.Minute))

	got, err := c.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "x", Count: 3}, got)

	require.NoError(t, c.Delete(ctx, "p"))
	_, err = c.Get(ctx, "p")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
