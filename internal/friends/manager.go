package friends

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/gateway"
	"habitSocialAPI/internal/observe"
	"habitSocialAPI/internal/reconcile"
	"habitSocialAPI/internal/timeout"
	"habitSocialAPI/internal/types/friendship"
)

const (
	DefaultTimeout         = 8 * time.Second
	DefaultMinSyncInterval = 5 * time.Second
)

type Options struct {
	UserID   uuid.UUID
	Username string
	Timeout  time.Duration
	// MinSyncInterval throttles Sync. ForceRefresh ignores it.
	MinSyncInterval time.Duration
	Logger          *zap.Logger
	Now             func() time.Time
	OnAuthExpired   func()
}

type lists struct {
	friends  []friendship.Friend
	incoming []friendship.FriendRequest
	outgoing []friendship.FriendRequest
}

func (l lists) clone() lists {
	return lists{
		friends:  append([]friendship.Friend(nil), l.friends...),
		incoming: append([]friendship.FriendRequest(nil), l.incoming...),
		outgoing: append([]friendship.FriendRequest(nil), l.outgoing...),
	}
}

// Manager owns the current user's friends and pending requests and only
// issues transitions that are legal from the locally known pair state.
type Manager struct {
	gw       gateway.Gateway
	me       uuid.UUID
	username string
	limit    time.Duration
	log      *zap.Logger
	now      func() time.Time
	onAuth   func()
	limiter  *rate.Limiter

	mu       sync.Mutex
	state    lists
	sending  map[string]bool
	journal  *reconcile.Journal[lists]
	lastErr  error
	lastSync time.Time

	// base holds the lists from the last installed sync. A failed
	// transition is undone by replaying the journal over it.
	base lists

	hub observe.Hub
}

func NewManager(gw gateway.Gateway, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinSyncInterval <= 0 {
		opts.MinSyncInterval = DefaultMinSyncInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		gw:       gw,
		me:       opts.UserID,
		username: opts.Username,
		limit:    opts.Timeout,
		log:      opts.Logger.Named("friends"),
		now:      opts.Now,
		onAuth:   opts.OnAuthExpired,
		limiter:  rate.NewLimiter(rate.Every(opts.MinSyncInterval), 1),
		sending:  make(map[string]bool),
		journal:  reconcile.NewJournal[lists](),
	}
}

func usernameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SendRequest asks toUsername to become a friend. While a send to the same
// user is in flight a second one fails with ErrAlreadyPending.
func (m *Manager) SendRequest(ctx context.Context, toUsername string, message *string) (*friendship.FriendRequest, error) {
	key := usernameKey(toUsername)
	if key == "" {
		return nil, m.reject(apperr.Validation("username is required"))
	}
	if key == usernameKey(m.username) {
		return nil, m.reject(apperr.Validation("cannot send a friend request to yourself"))
	}

	m.mu.Lock()
	if m.sending[key] {
		m.mu.Unlock()
		return nil, apperr.ErrAlreadyPending
	}
	switch m.stateByUsernameLocked(key) {
	case friendship.StateFriends:
		m.mu.Unlock()
		return nil, m.reject(apperr.ErrAlreadyFriends)
	case friendship.StatePendingOutgoing, friendship.StatePendingIncoming:
		m.mu.Unlock()
		return nil, m.reject(apperr.ErrAlreadyPending)
	}
	m.sending[key] = true
	m.mu.Unlock()
	m.hub.Publish()

	fr, err := timeout.Run(ctx, m.limit, func(ctx context.Context) (*friendship.FriendRequest, error) {
		return m.gw.SendFriendRequest(ctx, strings.TrimSpace(toUsername), message)
	})

	m.mu.Lock()
	delete(m.sending, key)
	if err != nil {
		m.mu.Unlock()
		m.hub.Publish()
		m.log.Warn("send friend request failed", zap.String("to", toUsername), zap.Error(err))
		return nil, m.fail(ctx, err)
	}
	req := *fr
	apply := func(l lists) lists { return withOutgoing(l, req) }
	m.journal.Confirm(m.journal.Begin(apply))
	m.state = apply(m.state)
	m.mu.Unlock()
	m.hub.Publish()

	m.log.Info("friend request sent", zap.String("to", req.ToUsername), zap.String("request_id", req.ID.String()))
	out := req
	return &out, nil
}

// AcceptRequest resolves an incoming request and adds the friend edge.
func (m *Manager) AcceptRequest(ctx context.Context, requestID uuid.UUID) error {
	m.mu.Lock()
	req, ok := findRequest(m.state.incoming, requestID)
	if !ok {
		m.mu.Unlock()
		return m.reject(apperr.ErrInvalidState)
	}
	edge := friendship.Friend{
		ID:             uuid.New(),
		UserID:         m.me,
		FriendID:       req.FromUserID,
		FriendUsername: req.FromUsername,
		CreatedAt:      m.now(),
	}
	apply := func(l lists) lists {
		l = withoutIncoming(l, requestID)
		return withFriend(l, edge)
	}
	op := m.journal.Begin(apply)
	m.state = apply(m.state)
	m.mu.Unlock()
	m.hub.Publish()

	err := timeout.Do(ctx, m.limit, func(ctx context.Context) error {
		return m.gw.AcceptFriendRequest(ctx, requestID)
	})
	if err != nil {
		m.mu.Lock()
		m.journal.Abort(op)
		m.state = m.journal.Rebuild(m.base)
		m.mu.Unlock()
		m.hub.Publish()
		m.log.Warn("accept friend request failed", zap.String("request_id", requestID.String()), zap.Error(err))
		return m.fail(ctx, err)
	}

	m.confirm(op)
	m.log.Info("friend request accepted", zap.String("request_id", requestID.String()), zap.String("friend", req.FromUsername))
	return nil
}

func (m *Manager) DeclineRequest(ctx context.Context, requestID uuid.UUID) error {
	m.mu.Lock()
	req, ok := findRequest(m.state.incoming, requestID)
	if !ok {
		m.mu.Unlock()
		return m.reject(apperr.ErrInvalidState)
	}
	apply := func(l lists) lists { return withoutIncoming(l, requestID) }
	op := m.journal.Begin(apply)
	m.state = apply(m.state)
	m.mu.Unlock()
	m.hub.Publish()

	err := timeout.Do(ctx, m.limit, func(ctx context.Context) error {
		return m.gw.DeclineFriendRequest(ctx, requestID)
	})
	if err != nil {
		m.mu.Lock()
		m.journal.Abort(op)
		m.state = m.journal.Rebuild(m.base)
		m.mu.Unlock()
		m.hub.Publish()
		m.log.Warn("decline friend request failed", zap.String("request_id", requestID.String()), zap.Error(err))
		return m.fail(ctx, err)
	}

	m.confirm(op)
	m.log.Info("friend request declined", zap.String("request_id", requestID.String()), zap.String("from", req.FromUsername))
	return nil
}

// CancelRequest withdraws the outgoing request to toUsername.
func (m *Manager) CancelRequest(ctx context.Context, toUsername string) error {
	key := usernameKey(toUsername)
	if key == "" {
		return m.reject(apperr.Validation("username is required"))
	}

	m.mu.Lock()
	var req friendship.FriendRequest
	found := false
	for _, r := range m.state.outgoing {
		if usernameKey(r.ToUsername) == key {
			req, found = r, true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return m.reject(apperr.ErrInvalidState)
	}
	apply := func(l lists) lists { return withoutOutgoing(l, key) }
	op := m.journal.Begin(apply)
	m.state = apply(m.state)
	m.mu.Unlock()
	m.hub.Publish()

	err := timeout.Do(ctx, m.limit, func(ctx context.Context) error {
		return m.gw.CancelFriendRequest(ctx, req.ToUsername)
	})
	if err != nil {
		m.mu.Lock()
		m.journal.Abort(op)
		m.state = m.journal.Rebuild(m.base)
		m.mu.Unlock()
		m.hub.Publish()
		m.log.Warn("cancel friend request failed", zap.String("to", req.ToUsername), zap.Error(err))
		return m.fail(ctx, err)
	}

	m.confirm(op)
	m.log.Info("friend request cancelled", zap.String("to", req.ToUsername))
	return nil
}

func (m *Manager) RemoveFriend(ctx context.Context, friendID uuid.UUID) error {
	m.mu.Lock()
	if m.stateLocked(friendID) != friendship.StateFriends {
		m.mu.Unlock()
		return m.reject(apperr.ErrInvalidState)
	}
	apply := func(l lists) lists { return withoutFriend(l, friendID) }
	op := m.journal.Begin(apply)
	m.state = apply(m.state)
	m.mu.Unlock()
	m.hub.Publish()

	err := timeout.Do(ctx, m.limit, func(ctx context.Context) error {
		return m.gw.RemoveFriend(ctx, friendID)
	})
	if err != nil {
		m.mu.Lock()
		m.journal.Abort(op)
		m.state = m.journal.Rebuild(m.base)
		m.mu.Unlock()
		m.hub.Publish()
		m.log.Warn("remove friend failed", zap.String("friend_id", friendID.String()), zap.Error(err))
		return m.fail(ctx, err)
	}

	m.confirm(op)
	m.log.Info("friend removed", zap.String("friend_id", friendID.String()))
	return nil
}

// Search looks users up remotely and annotates each with the pair state.
// The current user is left out.
func (m *Manager) Search(ctx context.Context, query string) ([]friendship.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, m.reject(apperr.Validation("search query is required"))
	}

	users, err := timeout.Run(ctx, m.limit, func(ctx context.Context) ([]friendship.UserSummary, error) {
		return m.gw.SearchUsers(ctx, query)
	})
	if err != nil {
		m.log.Warn("user search failed", zap.String("query", query), zap.Error(err))
		m.authCheck(err)
		return nil, m.reject(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]friendship.SearchResult, 0, len(users))
	for _, u := range users {
		if u.ID == m.me {
			continue
		}
		state := m.stateLocked(u.ID)
		if state == friendship.StateNone && m.sending[usernameKey(u.Username)] {
			state = friendship.StatePendingOutgoing
		}
		out = append(out, friendship.SearchResult{User: u, State: state})
	}
	return out, nil
}

// Sync reconciles with the server unless the last sync was too recent.
// A throttled call returns nil without doing anything.
func (m *Manager) Sync(ctx context.Context) error {
	if !m.limiter.Allow() {
		return nil
	}
	return m.ForceRefresh(ctx)
}

// ForceRefresh replaces all three lists with the server's, keeping
// in-flight mutations applied on top.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	err := m.refresh(ctx)
	if err != nil {
		m.log.Warn("friend sync failed", zap.Error(err))
		m.authCheck(err)
		m.publishErr(err)
	}
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	m.mu.Lock()
	since := m.journal.Mark()
	m.mu.Unlock()

	var next lists
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fs, err := timeout.Run(gctx, m.limit, m.gw.ListFriends)
		next.friends = fs
		return err
	})
	g.Go(func() error {
		rs, err := timeout.Run(gctx, m.limit, m.gw.ListIncomingRequests)
		next.incoming = pendingOnly(rs)
		return err
	})
	g.Go(func() error {
		rs, err := timeout.Run(gctx, m.limit, m.gw.ListOutgoingRequests)
		next.outgoing = pendingOnly(rs)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	merged, ok := m.journal.Replay(next, since)
	if !ok {
		m.mu.Unlock()
		return nil
	}
	m.base = next
	m.state = merged
	m.lastSync = m.now()
	m.mu.Unlock()
	m.hub.Publish()
	return nil
}

// State reports the relationship with userID as currently known locally.
func (m *Manager) State(userID uuid.UUID) friendship.RelationshipState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(userID)
}

func (m *Manager) StateByUsername(username string) friendship.RelationshipState {
	key := usernameKey(username)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sending[key] {
		return friendship.StatePendingOutgoing
	}
	return m.stateByUsernameLocked(key)
}

func (m *Manager) stateLocked(userID uuid.UUID) friendship.RelationshipState {
	for _, f := range m.state.friends {
		if f.FriendID == userID {
			return friendship.StateFriends
		}
	}
	for _, r := range m.state.outgoing {
		if r.ToUserID == userID {
			return friendship.StatePendingOutgoing
		}
	}
	for _, r := range m.state.incoming {
		if r.FromUserID == userID {
			return friendship.StatePendingIncoming
		}
	}
	return friendship.StateNone
}

func (m *Manager) stateByUsernameLocked(key string) friendship.RelationshipState {
	for _, f := range m.state.friends {
		if usernameKey(f.FriendUsername) == key {
			return friendship.StateFriends
		}
	}
	for _, r := range m.state.outgoing {
		if usernameKey(r.ToUsername) == key {
			return friendship.StatePendingOutgoing
		}
	}
	for _, r := range m.state.incoming {
		if usernameKey(r.FromUsername) == key {
			return friendship.StatePendingIncoming
		}
	}
	return friendship.StateNone
}

func (m *Manager) Friends() []friendship.Friend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]friendship.Friend(nil), m.state.friends...)
}

func (m *Manager) Incoming() []friendship.FriendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]friendship.FriendRequest(nil), m.state.incoming...)
}

func (m *Manager) Outgoing() []friendship.FriendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]friendship.FriendRequest(nil), m.state.outgoing...)
}

func (m *Manager) LastSync() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}

func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) ClearError() {
	m.mu.Lock()
	m.lastErr = nil
	m.mu.Unlock()
	m.hub.Publish()
}

func (m *Manager) Subscribe() (<-chan struct{}, func()) {
	return m.hub.Subscribe()
}

func (m *Manager) Close() {
	m.mu.Lock()
	m.state = lists{}
	m.base = lists{}
	m.journal.Reset()
	m.lastErr = nil
	m.mu.Unlock()
	m.hub.Close()
}

func (m *Manager) confirm(op uint64) {
	m.mu.Lock()
	m.journal.Confirm(op)
	m.mu.Unlock()
}

// fail publishes a remote failure. A conflict means the pair moved on the
// server, so the lists are reloaded first.
func (m *Manager) fail(ctx context.Context, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		if rerr := m.refresh(ctx); rerr != nil {
			m.log.Debug("silent refresh after conflict failed", zap.Error(rerr))
		}
	case apperr.KindAuth:
		m.authCheck(err)
	}
	m.publishErr(err)
	return err
}

func (m *Manager) reject(err error) error {
	m.publishErr(err)
	return err
}

func (m *Manager) authCheck(err error) {
	if apperr.KindOf(err) == apperr.KindAuth && m.onAuth != nil {
		m.onAuth()
	}
}

func (m *Manager) publishErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.hub.Publish()
}

func pendingOnly(rs []friendship.FriendRequest) []friendship.FriendRequest {
	out := make([]friendship.FriendRequest, 0, len(rs))
	for _, r := range rs {
		if r.IsPending() {
			out = append(out, r)
		}
	}
	return out
}

func findRequest(rs []friendship.FriendRequest, id uuid.UUID) (friendship.FriendRequest, bool) {
	for _, r := range rs {
		if r.ID == id {
			return r, true
		}
	}
	return friendship.FriendRequest{}, false
}

func withFriend(l lists, f friendship.Friend) lists {
	for _, existing := range l.friends {
		if existing.FriendID == f.FriendID {
			return l
		}
	}
	out := l.clone()
	out.friends = append(out.friends, f)
	return out
}

func withoutFriend(l lists, friendID uuid.UUID) lists {
	out := l.clone()
	out.friends = out.friends[:0]
	for _, f := range l.friends {
		if f.FriendID != friendID {
			out.friends = append(out.friends, f)
		}
	}
	return out
}

func withoutIncoming(l lists, id uuid.UUID) lists {
	out := l.clone()
	out.incoming = out.incoming[:0]
	for _, r := range l.incoming {
		if r.ID != id {
			out.incoming = append(out.incoming, r)
		}
	}
	return out
}

func withOutgoing(l lists, r friendship.FriendRequest) lists {
	for _, existing := range l.outgoing {
		if existing.ID == r.ID || usernameKey(existing.ToUsername) == usernameKey(r.ToUsername) {
			return l
		}
	}
	out := l.clone()
	out.outgoing = append(out.outgoing, r)
	return out
}

func withoutOutgoing(l lists, key string) lists {
	out := l.clone()
	out.outgoing = out.outgoing[:0]
	for _, r := range l.outgoing {
		if usernameKey(r.ToUsername) != key {
			out.outgoing = append(out.outgoing, r)
		}
	}
	return out
}
