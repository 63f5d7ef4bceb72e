package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/apperr"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) Sync(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestWorkerSyncsUntilCancelled(t *testing.T) {
	s := &countingSyncer{err: apperr.ErrNetwork}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartFriendSyncWorker(ctx, s, 5*time.Millisecond, nil)
	require.Eventually(t, func() bool { return s.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	after := s.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, s.calls.Load())
}
