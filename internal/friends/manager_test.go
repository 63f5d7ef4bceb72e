package friends

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/gateway/gatewaytest"
	"habitSocialAPI/internal/types/friendship"
)

type fixture struct {
	me   friendship.UserSummary
	bob  friendship.UserSummary
	cara friendship.UserSummary
	fake *gatewaytest.Fake
	mgr  *Manager
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		me:   friendship.UserSummary{ID: uuid.New(), Username: "me"},
		bob:  friendship.UserSummary{ID: uuid.New(), Username: "bob"},
		cara: friendship.UserSummary{ID: uuid.New(), Username: "cara"},
	}
	f.fake = gatewaytest.New(f.me)
	f.fake.SetUsers(f.me, f.bob, f.cara)

	o := Options{UserID: f.me.ID, Username: f.me.Username, Timeout: time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	f.mgr = NewManager(f.fake, o)
	return f
}

func (f *fixture) incomingFrom(u friendship.UserSummary) friendship.FriendRequest {
	return friendship.FriendRequest{
		ID:           uuid.New(),
		FromUserID:   u.ID,
		FromUsername: u.Username,
		ToUserID:     f.me.ID,
		ToUsername:   f.me.Username,
		Status:       friendship.RequestPending,
		CreatedAt:    time.Now(),
	}
}

func (f *fixture) friendWith(u friendship.UserSummary) friendship.Friend {
	return friendship.Friend{ID: uuid.New(), UserID: f.me.ID, FriendID: u.ID, FriendUsername: u.Username}
}

func TestSendRequestThenSearchReportsPendingOutgoing(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.SendRequest(context.Background(), "bob", nil)
	require.NoError(t, err)

	results, err := f.mgr.Search(context.Background(), "bo")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, f.bob.ID, results[0].User.ID)
	assert.Equal(t, friendship.StatePendingOutgoing, results[0].State)
	assert.Equal(t, friendship.StatePendingOutgoing, f.mgr.State(f.bob.ID))
}

func TestSearchDuringInFlightSendReportsPendingOutgoing(t *testing.T) {
	f := newFixture(t)
	entered, release := f.fake.Block(gatewaytest.OpSendRequest)
	done := make(chan error, 1)
	go func() {
		_, err := f.mgr.SendRequest(context.Background(), "Bob", nil)
		done <- err
	}()
	<-entered

	results, err := f.mgr.Search(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, friendship.StatePendingOutgoing, results[0].State)

	_, err = f.mgr.SendRequest(context.Background(), "bob", nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyPending)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.fake.Calls(gatewaytest.OpSendRequest))
}

func TestSendRequestToFriendFailsWithoutNetwork(t *testing.T) {
	f := newFixture(t)
	f.fake.SetFriends(f.friendWith(f.bob))
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	_, err := f.mgr.SendRequest(context.Background(), "bob", nil)

	assert.ErrorIs(t, err, apperr.ErrAlreadyFriends)
	assert.Equal(t, 0, f.fake.Calls(gatewaytest.OpSendRequest))
	assert.ErrorIs(t, f.mgr.LastError(), apperr.ErrAlreadyFriends)
}

func TestSendRequestWhenIncomingPending(t *testing.T) {
	f := newFixture(t)
	f.fake.SetIncoming(f.incomingFrom(f.bob))
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	_, err := f.mgr.SendRequest(context.Background(), "bob", nil)

	assert.ErrorIs(t, err, apperr.ErrAlreadyPending)
	assert.Equal(t, 0, f.fake.Calls(gatewaytest.OpSendRequest))
}

func TestSendRequestValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.SendRequest(context.Background(), "   ", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.mgr.SendRequest(context.Background(), "ME", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.mgr.Search(context.Background(), "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.Equal(t, 0, f.fake.Calls(gatewaytest.OpSendRequest))
	assert.Equal(t, 0, f.fake.Calls(gatewaytest.OpSearchUsers))
}

func TestSendRequestUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.SendRequest(context.Background(), "nobody", nil)

	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Empty(t, f.mgr.Outgoing())
}

func TestAcceptTwiceYieldsInvalidState(t *testing.T) {
	f := newFixture(t)
	req := f.incomingFrom(f.bob)
	f.fake.SetIncoming(req)
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	require.NoError(t, f.mgr.AcceptRequest(context.Background(), req.ID))
	err := f.mgr.AcceptRequest(context.Background(), req.ID)

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 1, f.fake.Calls(gatewaytest.OpAcceptRequest))
	assert.Len(t, f.mgr.Friends(), 1)
	assert.Empty(t, f.mgr.Incoming())
	assert.Equal(t, friendship.StateFriends, f.mgr.State(f.bob.ID))

	require.NoError(t, f.mgr.ForceRefresh(context.Background()))
	assert.Len(t, f.mgr.Friends(), 1)
	assert.Len(t, f.fake.FriendsList(), 1)
}

func TestAcceptStaleRequestRefreshesAndSurfacesInvalidState(t *testing.T) {
	f := newFixture(t)
	req := f.incomingFrom(f.bob)
	f.fake.SetIncoming(req)
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	// bob cancelled on the server in the meantime
	f.fake.SetIncoming()

	err := f.mgr.AcceptRequest(context.Background(), req.ID)

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Empty(t, f.mgr.Incoming())
	assert.Empty(t, f.mgr.Friends())
	assert.Equal(t, friendship.StateNone, f.mgr.State(f.bob.ID))
	assert.Equal(t, 2, f.fake.Calls(gatewaytest.OpListIncoming))
}

func TestAcceptNetworkFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	req := f.incomingFrom(f.bob)
	f.fake.SetIncoming(req)
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))
	f.fake.FailNext(gatewaytest.OpAcceptRequest, apperr.ErrNetwork)

	err := f.mgr.AcceptRequest(context.Background(), req.ID)

	assert.True(t, apperr.Retryable(err))
	assert.Empty(t, f.mgr.Friends())
	require.Len(t, f.mgr.Incoming(), 1)
	assert.Equal(t, friendship.StatePendingIncoming, f.mgr.State(f.bob.ID))
}

func TestAcceptFailureKeepsFriendFromSync(t *testing.T) {
	f := newFixture(t)
	req := f.incomingFrom(f.bob)
	f.fake.SetIncoming(req)
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	entered, release := f.fake.Block(gatewaytest.OpAcceptRequest)
	f.fake.FailNext(gatewaytest.OpAcceptRequest, apperr.ErrNetwork)
	done := make(chan error, 1)
	go func() { done <- f.mgr.AcceptRequest(context.Background(), req.ID) }()
	<-entered

	// the accept reached the server but the reply was lost
	f.fake.SetIncoming()
	f.fake.SetFriends(f.friendWith(f.bob))
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	release()
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(<-done))
	assert.Equal(t, friendship.StateFriends, f.mgr.State(f.bob.ID))
	assert.Empty(t, f.mgr.Incoming())

	require.NoError(t, f.mgr.ForceRefresh(context.Background()))
	assert.Equal(t, friendship.StateFriends, f.mgr.State(f.bob.ID))
}

func TestRemoveFailureKeepsConcurrentSync(t *testing.T) {
	f := newFixture(t)
	f.fake.SetFriends(f.friendWith(f.bob))
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	entered, release := f.fake.Block(gatewaytest.OpRemoveFriend)
	f.fake.FailNext(gatewaytest.OpRemoveFriend, apperr.ErrNetwork)
	done := make(chan error, 1)
	go func() { done <- f.mgr.RemoveFriend(context.Background(), f.bob.ID) }()
	<-entered

	f.fake.SetIncoming(f.incomingFrom(f.cara))
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))
	assert.Equal(t, friendship.StateNone, f.mgr.State(f.bob.ID))

	release()
	require.Error(t, <-done)
	assert.Equal(t, friendship.StateFriends, f.mgr.State(f.bob.ID))
	assert.Equal(t, friendship.StatePendingIncoming, f.mgr.State(f.cara.ID))
}

func TestDeclineAndCancel(t *testing.T) {
	f := newFixture(t)
	in := f.incomingFrom(f.bob)
	f.fake.SetIncoming(in)
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))
	_, err := f.mgr.SendRequest(context.Background(), "cara", nil)
	require.NoError(t, err)

	require.NoError(t, f.mgr.DeclineRequest(context.Background(), in.ID))
	require.NoError(t, f.mgr.CancelRequest(context.Background(), "CARA"))

	assert.Equal(t, friendship.StateNone, f.mgr.State(f.bob.ID))
	assert.Equal(t, friendship.StateNone, f.mgr.State(f.cara.ID))
	assert.Empty(t, f.mgr.Friends())

	assert.ErrorIs(t, f.mgr.CancelRequest(context.Background(), "cara"), apperr.ErrInvalidState)
	assert.ErrorIs(t, f.mgr.DeclineRequest(context.Background(), in.ID), apperr.ErrInvalidState)
	assert.Equal(t, 1, f.fake.Calls(gatewaytest.OpCancelRequest))
	assert.Equal(t, 1, f.fake.Calls(gatewaytest.OpDeclineRequest))
}

func TestRemoveFriend(t *testing.T) {
	f := newFixture(t)
	f.fake.SetFriends(f.friendWith(f.bob))
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	f.fake.FailNext(gatewaytest.OpRemoveFriend, apperr.ErrNetwork)
	require.Error(t, f.mgr.RemoveFriend(context.Background(), f.bob.ID))
	assert.Equal(t, friendship.StateFriends, f.mgr.State(f.bob.ID))

	require.NoError(t, f.mgr.RemoveFriend(context.Background(), f.bob.ID))
	assert.Equal(t, friendship.StateNone, f.mgr.State(f.bob.ID))

	assert.ErrorIs(t, f.mgr.RemoveFriend(context.Background(), f.bob.ID), apperr.ErrInvalidState)
}

func TestSyncIsThrottled(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MinSyncInterval = time.Hour })

	require.NoError(t, f.mgr.Sync(context.Background()))
	require.NoError(t, f.mgr.Sync(context.Background()))
	assert.Equal(t, 1, f.fake.Calls(gatewaytest.OpListFriends))

	require.NoError(t, f.mgr.ForceRefresh(context.Background()))
	assert.Equal(t, 2, f.fake.Calls(gatewaytest.OpListFriends))
}

func TestRefreshFailureKeepsLists(t *testing.T) {
	f := newFixture(t)
	f.fake.SetFriends(f.friendWith(f.bob))
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	f.fake.FailNext(gatewaytest.OpListOutgoing, apperr.ErrNetwork)
	err := f.mgr.ForceRefresh(context.Background())

	require.Error(t, err)
	assert.Len(t, f.mgr.Friends(), 1)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(f.mgr.LastError()))
}

func TestRefreshDuringAcceptKeepsOptimisticEdge(t *testing.T) {
	f := newFixture(t)
	req := f.incomingFrom(f.bob)
	f.fake.SetIncoming(req)
	require.NoError(t, f.mgr.ForceRefresh(context.Background()))

	entered, release := f.fake.Block(gatewaytest.OpAcceptRequest)
	done := make(chan error, 1)
	go func() { done <- f.mgr.AcceptRequest(context.Background(), req.ID) }()
	<-entered

	require.NoError(t, f.mgr.ForceRefresh(context.Background()))
	assert.Equal(t, friendship.StateFriends, f.mgr.State(f.bob.ID))
	assert.Empty(t, f.mgr.Incoming())

	release()
	require.NoError(t, <-done)
	assert.Len(t, f.mgr.Friends(), 1)
}

func TestAuthFailureInvokesHook(t *testing.T) {
	called := make(chan struct{}, 1)
	f := newFixture(t, func(o *Options) { o.OnAuthExpired = func() { called <- struct{}{} } })
	f.fake.FailNext(gatewaytest.OpSearchUsers, apperr.ErrAuth)

	_, err := f.mgr.Search(context.Background(), "bob")

	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	select {
	case <-called:
	default:
		t.Fatal("re-auth hook not called")
	}
}
