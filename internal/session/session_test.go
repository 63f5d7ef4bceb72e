package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/challenges"
	"habitSocialAPI/internal/gateway/gatewaytest"
	"habitSocialAPI/internal/localstore"
	"habitSocialAPI/internal/registry"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/habit"
)

func newSession(t *testing.T, opts ...func(*Options)) (*Session, *gatewaytest.Fake) {
	t.Helper()
	me := friendship.UserSummary{ID: uuid.New(), Username: "me"}
	fake := gatewaytest.New(me)
	o := Options{User: me, MutationTimeout: time.Second, RemoteActivitiesEnabled: true}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := New(fake, o)
	require.NoError(t, err)
	return s, fake
}

func TestRegistryHoldsLiveInstances(t *testing.T) {
	s, _ := newSession(t)

	habits, ok := registry.Get[*localstore.HabitStore](s.Registry, registry.KindHabits)
	require.True(t, ok)
	assert.Same(t, s.Habits, habits)

	store, ok := registry.Get[*challenges.Store](s.Registry, registry.KindChallenges)
	require.True(t, ok)
	assert.Same(t, s.Challenges, store)
}

func TestDispatchJoinChallenge(t *testing.T) {
	s, fake := newSession(t)
	c := challenge.Challenge{ID: uuid.New(), Title: "x", TargetValue: 5, IsActive: true, EndDate: time.Now().Add(time.Hour)}
	fake.SetChallenges(c)

	_, err := s.Dispatch(context.Background(), RefreshChallenges{})
	require.NoError(t, err)
	_, err = s.Dispatch(context.Background(), JoinChallenge{ChallengeID: c.ID})
	require.NoError(t, err)
	_, err = s.Dispatch(context.Background(), JoinChallenge{ChallengeID: c.ID})

	assert.ErrorIs(t, err, apperr.ErrAlreadyJoined)
	assert.True(t, s.Challenges.IsParticipating(c.ID))
	assert.Equal(t, 1, fake.Calls(gatewaytest.OpJoinChallenge))
}

func TestDispatchFriendFlow(t *testing.T) {
	s, fake := newSession(t)
	bob := friendship.UserSummary{ID: uuid.New(), Username: "bob"}
	fake.SetUsers(bob)

	res, err := s.Dispatch(context.Background(), SendFriendRequest{ToUsername: "bob"})
	require.NoError(t, err)
	fr, ok := res.(*friendship.FriendRequest)
	require.True(t, ok)
	assert.Equal(t, bob.ID, fr.ToUserID)

	_, err = s.Dispatch(context.Background(), CancelFriendRequest{ToUsername: "bob"})
	require.NoError(t, err)
	assert.Equal(t, friendship.StateNone, s.Friends.State(bob.ID))

	_, err = s.Dispatch(context.Background(), SyncFriends{Force: true})
	require.NoError(t, err)
}

func TestSignOutTearsDown(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.Habits.Put(habit.Habit{ID: uuid.New()}))

	s.SignOut()
	s.SignOut()

	assert.True(t, s.SignedOut())
	assert.True(t, s.Registry.Closed())
	_, ok := registry.Get[*localstore.HabitStore](s.Registry, registry.KindHabits)
	assert.False(t, ok)

	_, err := s.Dispatch(context.Background(), RefreshChallenges{})
	assert.ErrorIs(t, err, ErrSignedOut)

	acts, err := s.Feed.Activities(context.Background(), s.User.ID)
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestAuthExpiryReachesSessionHook(t *testing.T) {
	expired := make(chan struct{}, 2)
	s, fake := newSession(t, func(o *Options) { o.OnAuthExpired = func() { expired <- struct{}{} } })
	fake.FailNext(gatewaytest.OpListChallenges, apperr.ErrAuth)

	_, err := s.Dispatch(context.Background(), RefreshChallenges{})

	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	assert.Len(t, expired, 1)
}

type unknownCommand struct{}

func (unknownCommand) Name() string { return "unknown" }

func TestDispatchUnknownCommand(t *testing.T) {
	s, _ := newSession(t)

	_, err := s.Dispatch(context.Background(), unknownCommand{})

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
