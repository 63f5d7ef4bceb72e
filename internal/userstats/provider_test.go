package userstats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/cache"
	"habitSocialAPI/internal/gateway/gatewaytest"
	"habitSocialAPI/internal/localstore"
	"habitSocialAPI/internal/registry"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/habit"
	"habitSocialAPI/internal/types/stats"
)

type fakeChallenges struct{ active int }

func (f fakeChallenges) MyActive() []challenge.Challenge {
	return make([]challenge.Challenge, f.active)
}

func TestLocalStatsForCurrentUser(t *testing.T) {
	me := uuid.New()
	reg := registry.New()
	habits := localstore.New[habit.Habit]()
	tasks := localstore.New[habit.Task]()
	goals := localstore.New[habit.Goal]()
	require.NoError(t, reg.Register(registry.KindHabits, habits))
	require.NoError(t, reg.Register(registry.KindTasks, tasks))
	require.NoError(t, reg.Register(registry.KindGoals, goals))
	require.NoError(t, reg.Register(registry.KindChallenges, fakeChallenges{active: 2}))

	require.NoError(t, habits.Put(habit.Habit{ID: uuid.New(), CurrentStreak: 4, LongestStreak: 9}))
	require.NoError(t, habits.Put(habit.Habit{ID: uuid.New(), CurrentStreak: 12, LongestStreak: 3}))
	require.NoError(t, tasks.Put(habit.Task{ID: uuid.New(), IsCompleted: true}))
	require.NoError(t, tasks.Put(habit.Task{ID: uuid.New()}))
	require.NoError(t, goals.Put(habit.Goal{ID: uuid.New()}))

	fake := gatewaytest.New(friendship.UserSummary{ID: me})
	p := NewProvider(fake, reg, Options{UserID: me})

	s, err := p.Stats(context.Background(), me)
	require.NoError(t, err)

	assert.Equal(t, stats.SourceLocal, s.Source)
	assert.Equal(t, 2, s.HabitsCount)
	assert.Equal(t, 12, s.MaxStreak)
	assert.Equal(t, 2, s.TasksCount)
	assert.Equal(t, 1, s.CompletedTasks)
	assert.Equal(t, 1, s.GoalsCount)
	assert.Equal(t, 0, s.CompletedGoals)
	assert.Equal(t, 2, s.ActiveChallenges)
	assert.Equal(t, 0, fake.Calls(gatewaytest.OpGetUserStats))
}

func TestRemoteStatsAreCached(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	fake := gatewaytest.New(friendship.UserSummary{ID: me})
	fake.SetStats(stats.UserStatistics{UserID: other, HabitsCount: 5, MaxStreak: 21})
	mem := cache.NewMemoryCache[stats.UserStatistics]().WithClock(func() time.Time { return now })
	p := NewProvider(fake, registry.New(), Options{UserID: me, Cache: mem, CacheTTL: time.Minute})

	first, err := p.Stats(context.Background(), other)
	require.NoError(t, err)
	second, err := p.Stats(context.Background(), other)
	require.NoError(t, err)

	assert.Equal(t, stats.SourceRemote, first.Source)
	assert.Equal(t, 21, second.MaxStreak)
	assert.Equal(t, 1, fake.Calls(gatewaytest.OpGetUserStats))

	now = now.Add(2 * time.Minute)
	_, err = p.Stats(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls(gatewaytest.OpGetUserStats))

	p.Invalidate(context.Background(), other)
	_, err = p.Stats(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.Calls(gatewaytest.OpGetUserStats))
}

func TestRemoteStatsTimeout(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	fake := gatewaytest.New(friendship.UserSummary{ID: me})
	_, release := fake.Block(gatewaytest.OpGetUserStats)
	defer release()
	p := NewProvider(fake, registry.New(), Options{UserID: me, Timeout: 20 * time.Millisecond})

	_, err := p.Stats(context.Background(), other)

	assert.ErrorIs(t, err, apperr.ErrTimeout)
}

func TestRemoteStatsErrorNotCached(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	fake := gatewaytest.New(friendship.UserSummary{ID: me})
	p := NewProvider(fake, registry.New(), Options{UserID: me})

	_, err := p.Stats(context.Background(), other)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	fake.SetStats(stats.UserStatistics{UserID: other, GoalsCount: 1})
	s, err := p.Stats(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 1, s.GoalsCount)
}
