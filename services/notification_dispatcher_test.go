package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/types/notification"
)

type memoryDelivery struct {
	mu     sync.Mutex
	tokens map[uuid.UUID][]notification.DeviceToken
	sent   []uuid.UUID
	failed map[uuid.UUID]string
}

func newMemoryDelivery() *memoryDelivery {
	return &memoryDelivery{tokens: map[uuid.UUID][]notification.DeviceToken{}, failed: map[uuid.UUID]string{}}
}

func (m *memoryDelivery) DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[userID], nil
}

func (m *memoryDelivery) MarkSent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, id)
	return nil
}

func (m *memoryDelivery) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = reason
	return nil
}

func (m *memoryDelivery) outcome(id uuid.UUID) (sent bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sent {
		if s == id {
			return true, ""
		}
	}
	return false, m.failed[id]
}

type stubPush struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *stubPush) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func TestDispatcherDeliversAndMarksSent(t *testing.T) {
	store := newMemoryDelivery()
	push := &stubPush{}
	user := uuid.New()
	store.tokens[user] = []notification.DeviceToken{{Token: "t1", Platform: "android"}}
	d := NewNotificationDispatcher(store, push, 2, nil)
	defer d.Stop()

	n := &notification.Notification{ID: uuid.New(), UserID: user, Title: "hi"}
	require.True(t, d.Dispatch(n))

	require.Eventually(t, func() bool {
		sent, _ := store.outcome(n.ID)
		return sent
	}, time.Second, 5*time.Millisecond)
	push.mu.Lock()
	assert.Equal(t, 1, push.calls)
	push.mu.Unlock()
}

func TestDispatcherSkipsPushWithoutDevices(t *testing.T) {
	store := newMemoryDelivery()
	push := &stubPush{}
	d := NewNotificationDispatcher(store, push, 1, nil)
	defer d.Stop()

	n := &notification.Notification{ID: uuid.New(), UserID: uuid.New()}
	require.True(t, d.Dispatch(n))

	require.Eventually(t, func() bool {
		sent, _ := store.outcome(n.ID)
		return sent
	}, time.Second, 5*time.Millisecond)
	push.mu.Lock()
	assert.Zero(t, push.calls)
	push.mu.Unlock()
}

func TestDispatcherMarksFailedPush(t *testing.T) {
	store := newMemoryDelivery()
	push := &stubPush{err: errors.New("fcm down")}
	user := uuid.New()
	store.tokens[user] = []notification.DeviceToken{{Token: "t1"}}
	d := NewNotificationDispatcher(store, push, 1, nil)
	defer d.Stop()

	n := &notification.Notification{ID: uuid.New(), UserID: user}
	require.True(t, d.Dispatch(n))

	require.Eventually(t, func() bool {
		_, reason := store.outcome(n.ID)
		return reason == "fcm down"
	}, time.Second, 5*time.Millisecond)
}

func TestDispatchAfterStopIsRejected(t *testing.T) {
	d := NewNotificationDispatcher(newMemoryDelivery(), &stubPush{}, 1, nil)
	d.Stop()
	d.Stop()

	assert.False(t, d.Dispatch(&notification.Notification{ID: uuid.New()}))
}
