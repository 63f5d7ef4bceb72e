// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/gateway"
	"habitSocialAPI/internal/types/activity"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/stats"
)

const (
	OpListChallenges  = "list_challenges"
	OpCreateChallenge = "create_challenge"
	OpJoinChallenge   = "join_challenge"
	OpLeaveChallenge  = "leave_challenge"
	OpSendRequest     = "send_friend_request"
	OpAcceptRequest   = "accept_friend_request"
	OpDeclineRequest  = "decline_friend_request"
	OpCancelRequest   = "cancel_friend_request"
	OpRemoveFriend    = "remove_friend"
	OpListFriends     = "list_friends"
	OpListIncoming    = "list_incoming_requests"
	OpListOutgoing    = "list_outgoing_requests"
	OpSearchUsers     = "search_users"
	OpGetUserStats    = "get_user_stats"
	OpFetchActivities = "fetch_activities"
)

// Fake behaves like a small server holding the current user's view. Tests
// seed the exported fields, inject failures with FailNext/FailAlways, and
// park calls with Block.
type Fake struct {
	Me  friendship.UserSummary
	Now func() time.Time

	mu         sync.Mutex
	challenges []challenge.Challenge
	friends    []friendship.Friend
	incoming   []friendship.FriendRequest
	outgoing   []friendship.FriendRequest
	users      []friendship.UserSummary
	stats      map[uuid.UUID]stats.UserStatistics
	activities map[activity.Scope][]activity.SocialActivity

	calls    map[string]int
	failNext map[string][]error
	failAll  map[string]error
	blocks   map[string]chan struct{}
	entered  map[string]chan struct{}
}

var _ gateway.Gateway = (*Fake)(nil)

func New(me friendship.UserSummary) *Fake {
	return &Fake{
		Me:         me,
		Now:        time.Now,
		stats:      make(map[uuid.UUID]stats.UserStatistics),
		activities: make(map[activity.Scope][]activity.SocialActivity),
		calls:      make(map[string]int),
		failNext:   make(map[string][]error),
		failAll:    make(map[string]error),
		blocks:     make(map[string]chan struct{}),
		entered:    make(map[string]chan struct{}),
	}
}

func (f *Fake) SetChallenges(cs ...challenge.Challenge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges = nil
	for _, c := range cs {
		f.challenges = append(f.challenges, c.Clone())
	}
}

func (f *Fake) SetFriends(fs ...friendship.Friend) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.friends = append([]friendship.Friend(nil), fs...)
}

func (f *Fake) SetIncoming(rs ...friendship.FriendRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incoming = append([]friendship.FriendRequest(nil), rs...)
}

func (f *Fake) SetOutgoing(rs ...friendship.FriendRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outgoing = append([]friendship.FriendRequest(nil), rs...)
}

func (f *Fake) SetUsers(us ...friendship.UserSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append([]friendship.UserSummary(nil), us...)
}

func (f *Fake) SetStats(s stats.UserStatistics) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[s.UserID] = s
}

func (f *Fake) SetActivities(scope activity.Scope, as ...activity.SocialActivity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities[scope] = append([]activity.SocialActivity(nil), as...)
}

// FailNext queues err for the next call of op.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = append(f.failNext[op], err)
}

// FailAlways makes every call of op fail with err until cleared with nil.
func (f *Fake) FailAlways(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAll, op)
		return
	}
	f.failAll[op] = err
}

// Block parks calls of op until release is called. The returned entered
// channel is closed once the first blocked call arrives.
func (f *Fake) Block(op string) (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{})
	f.blocks[op] = gate
	f.entered[op] = in
	var once sync.Once
	return in, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.blocks, op)
			f.mu.Unlock()
			close(gate)
		})
	}
}

func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) Challenges() []challenge.Challenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]challenge.Challenge, len(f.challenges))
	for i, c := range f.challenges {
		out[i] = c.Clone()
	}
	return out
}

func (f *Fake) FriendsList() []friendship.Friend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]friendship.Friend(nil), f.friends...)
}

// enter records the call, waits on any block, then returns the injected
// failure if one is set.
func (f *Fake) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.blocks[op]
	in := f.entered[op]
	if in != nil {
		delete(f.entered, op)
	}
	f.mu.Unlock()

	if in != nil {
		close(in)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if q := f.failNext[op]; len(q) > 0 {
		f.failNext[op] = q[1:]
		return q[0]
	}
	return f.failAll[op]
}

func (f *Fake) findChallenge(id uuid.UUID) int {
	for i := range f.challenges {
		if f.challenges[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *Fake) ListChallenges(ctx context.Context, filter challenge.Filter) ([]challenge.Challenge, error) {
	if err := f.enter(ctx, OpListChallenges); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]challenge.Challenge, 0, len(f.challenges))
	for _, c := range f.challenges {
		_, mine := c.ParticipantFor(f.Me.ID)
		switch filter {
		case challenge.FilterMine:
			if !mine && c.CreatorID != f.Me.ID {
				continue
			}
		case challenge.FilterPublic:
			if c.IsPrivate {
				continue
			}
		}
		out = append(out, c.Clone())
	}
	return out, nil
}

func (f *Fake) CreateChallenge(ctx context.Context, req challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	if err := f.enter(ctx, OpCreateChallenge); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	c := challenge.Challenge{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Type:        req.Type,
		TargetValue: req.TargetValue,
		CreatedAt:   f.Now(),
		EndDate:     req.EndDate,
		CreatorID:   f.Me.ID,
		IsPrivate:   req.IsPrivate,
		IsActive:    true,
	}
	f.challenges = append(f.challenges, c)
	return &c, nil
}

func (f *Fake) JoinChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Participant, error) {
	if err := f.enter(ctx, OpJoinChallenge); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.findChallenge(challengeID)
	if i < 0 {
		return nil, apperr.ErrNotFound
	}
	c := &f.challenges[i]
	if !c.CanJoin(f.Now()) {
		return nil, apperr.ErrInactive
	}
	if _, ok := c.ParticipantFor(f.Me.ID); ok {
		return nil, apperr.ErrAlreadyJoined
	}
	p := challenge.Participant{
		UserID:      f.Me.ID,
		DisplayName: f.Me.Username,
		TargetValue: c.TargetValue,
		JoinedAt:    f.Now(),
	}
	c.Participants = append(c.Participants, p)
	return &p, nil
}

func (f *Fake) LeaveChallenge(ctx context.Context, challengeID uuid.UUID) error {
	if err := f.enter(ctx, OpLeaveChallenge); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.findChallenge(challengeID)
	if i < 0 {
		return apperr.ErrNotFound
	}
	c := &f.challenges[i]
	for j, p := range c.Participants {
		if p.UserID == f.Me.ID {
			c.Participants = append(c.Participants[:j], c.Participants[j+1:]...)
			return nil
		}
	}
	return apperr.ErrNotAParticipant
}

func (f *Fake) SendFriendRequest(ctx context.Context, toUsername string, message *string) (*friendship.FriendRequest, error) {
	if err := f.enter(ctx, OpSendRequest); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var target *friendship.UserSummary
	for i := range f.users {
		if strings.EqualFold(f.users[i].Username, toUsername) {
			target = &f.users[i]
			break
		}
	}
	if target == nil {
		return nil, apperr.ErrUserNotFound
	}
	for _, fr := range f.friends {
		if fr.FriendID == target.ID {
			return nil, apperr.ErrAlreadyFriends
		}
	}
	for _, r := range append(append([]friendship.FriendRequest(nil), f.incoming...), f.outgoing...) {
		if r.FromUserID == target.ID || r.ToUserID == target.ID {
			return nil, apperr.ErrAlreadyPending
		}
	}

	r := friendship.FriendRequest{
		ID:           uuid.New(),
		FromUserID:   f.Me.ID,
		FromUsername: f.Me.Username,
		ToUserID:     target.ID,
		ToUsername:   target.Username,
		Message:      message,
		Status:       friendship.RequestPending,
		CreatedAt:    f.Now(),
	}
	f.outgoing = append(f.outgoing, r)
	return &r, nil
}

func (f *Fake) takeIncoming(id uuid.UUID) (friendship.FriendRequest, bool) {
	for i, r := range f.incoming {
		if r.ID == id {
			f.incoming = append(f.incoming[:i], f.incoming[i+1:]...)
			return r, true
		}
	}
	return friendship.FriendRequest{}, false
}

func (f *Fake) AcceptFriendRequest(ctx context.Context, requestID uuid.UUID) error {
	if err := f.enter(ctx, OpAcceptRequest); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.takeIncoming(requestID)
	if !ok {
		return apperr.ErrInvalidState
	}
	f.friends = append(f.friends, friendship.Friend{
		ID:             uuid.New(),
		UserID:         f.Me.ID,
		FriendID:       r.FromUserID,
		FriendUsername: r.FromUsername,
		CreatedAt:      f.Now(),
	})
	return nil
}

func (f *Fake) DeclineFriendRequest(ctx context.Context, requestID uuid.UUID) error {
	if err := f.enter(ctx, OpDeclineRequest); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.takeIncoming(requestID); !ok {
		return apperr.ErrInvalidState
	}
	return nil
}

func (f *Fake) CancelFriendRequest(ctx context.Context, toUsername string) error {
	if err := f.enter(ctx, OpCancelRequest); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, r := range f.outgoing {
		if strings.EqualFold(r.ToUsername, toUsername) {
			f.outgoing = append(f.outgoing[:i], f.outgoing[i+1:]...)
			return nil
		}
	}
	return apperr.ErrInvalidState
}

func (f *Fake) RemoveFriend(ctx context.Context, friendID uuid.UUID) error {
	if err := f.enter(ctx, OpRemoveFriend); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, fr := range f.friends {
		if fr.FriendID == friendID {
			f.friends = append(f.friends[:i], f.friends[i+1:]...)
			return nil
		}
	}
	// removing an absent edge is an idempotent no-op on the server
	return nil
}

func (f *Fake) ListFriends(ctx context.Context) ([]friendship.Friend, error) {
	if err := f.enter(ctx, OpListFriends); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]friendship.Friend{}, f.friends...), nil
}

func (f *Fake) ListIncomingRequests(ctx context.Context) ([]friendship.FriendRequest, error) {
	if err := f.enter(ctx, OpListIncoming); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]friendship.FriendRequest{}, f.incoming...), nil
}

func (f *Fake) ListOutgoingRequests(ctx context.Context) ([]friendship.FriendRequest, error) {
	if err := f.enter(ctx, OpListOutgoing); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]friendship.FriendRequest{}, f.outgoing...), nil
}

func (f *Fake) SearchUsers(ctx context.Context, query string) ([]friendship.UserSummary, error) {
	if err := f.enter(ctx, OpSearchUsers); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	q := strings.ToLower(query)
	var out []friendship.UserSummary
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Username), q) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *Fake) GetUserStats(ctx context.Context, userID uuid.UUID) (*stats.UserStatistics, error) {
	if err := f.enter(ctx, OpGetUserStats); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.stats[userID]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	s.Source = stats.SourceRemote
	return &s, nil
}

func (f *Fake) FetchActivities(ctx context.Context, scope activity.Scope) ([]activity.SocialActivity, error) {
	if err := f.enter(ctx, OpFetchActivities); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]activity.SocialActivity{}, f.activities[scope]...), nil
}
