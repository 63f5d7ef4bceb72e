package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/localstore"
	"habitSocialAPI/internal/types/habit"
)

func TestGetReturnsSameInstance(t *testing.T) {
	r := New()
	habits := localstore.New[habit.Habit]()
	require.NoError(t, r.Register(KindHabits, habits))

	a, ok := Get[*localstore.HabitStore](r, KindHabits)
	require.True(t, ok)
	b, _ := Get[*localstore.HabitStore](r, KindHabits)

	assert.Same(t, habits, a)
	assert.Same(t, a, b)
}

func TestGetWrongTypeMisses(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(KindTasks, localstore.New[habit.Task]()))

	_, ok := Get[*localstore.HabitStore](r, KindTasks)
	assert.False(t, ok)
}

func TestRegisterTwiceFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(KindGoals, localstore.New[habit.Goal]()))
	assert.Error(t, r.Register(KindGoals, localstore.New[habit.Goal]()))
}

func TestTearDown(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(KindHabits, localstore.New[habit.Habit]()))

	r.TearDown()

	assert.True(t, r.Closed())
	_, ok := Get[*localstore.HabitStore](r, KindHabits)
	assert.False(t, ok)
	assert.ErrorIs(t, r.Register(KindHabits, localstore.New[habit.Habit]()), ErrClosed)
}

func TestResolve(t *testing.T) {
	r := New()
	shared := localstore.New[habit.Habit]()
	require.NoError(t, r.Register(KindHabits, shared))
	fallback := func() *localstore.HabitStore { return localstore.ReadOnly[habit.Habit]() }

	t.Run("explicit store wins", func(t *testing.T) {
		explicit := localstore.New[habit.Habit]()
		got := Resolve(explicit, true, r, KindHabits, fallback)
		assert.Same(t, explicit, got)
	})

	t.Run("current user gets shared instance", func(t *testing.T) {
		got := Resolve[*localstore.HabitStore](nil, true, r, KindHabits, fallback)
		assert.Same(t, shared, got)
	})

	t.Run("other user gets read-only fallback", func(t *testing.T) {
		got := Resolve[*localstore.HabitStore](nil, false, r, KindHabits, fallback)
		assert.NotSame(t, shared, got)
		assert.True(t, got.IsReadOnly())
	})

	t.Run("current user after teardown gets fallback", func(t *testing.T) {
		closed := New()
		closed.TearDown()
		got := Resolve[*localstore.HabitStore](nil, true, closed, KindHabits, fallback)
		assert.True(t, got.IsReadOnly())
	})
}
