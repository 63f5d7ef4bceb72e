// Package session wires one signed-in user's stores together and routes
// user intents to them.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/cache"
	"habitSocialAPI/internal/challenges"
	"habitSocialAPI/internal/feed"
	"habitSocialAPI/internal/friends"
	"habitSocialAPI/internal/gateway"
	"habitSocialAPI/internal/localstore"
	"habitSocialAPI/internal/registry"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/habit"
	"habitSocialAPI/internal/types/stats"
	"habitSocialAPI/internal/userstats"
)

var ErrSignedOut = apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "session signed out")

type Options struct {
	User                    friendship.UserSummary
	MutationTimeout         time.Duration
	StatsTimeout            time.Duration
	StatsCacheTTL           time.Duration
	StatsCache              cache.Cache[stats.UserStatistics]
	RemoteActivitiesEnabled bool
	FeedLimits              feed.Limits
	MinSyncInterval         time.Duration
	Logger                  *zap.Logger
	Now                     func() time.Time
	// OnAuthExpired is called when any store sees an Auth failure.
	OnAuthExpired func()
}

// Session is built once at sign-in and torn down at sign-out. Every
// component reaches shared state through it rather than through globals.
type Session struct {
	User       friendship.UserSummary
	Registry   *registry.Registry
	Habits     *localstore.HabitStore
	Tasks      *localstore.TaskStore
	Goals      *localstore.GoalStore
	Challenges *challenges.Store
	Friends    *friends.Manager
	Feed       *feed.Aggregator
	Stats      *userstats.Provider

	log    *zap.Logger
	onAuth func()

	mu        sync.Mutex
	signedOut bool
}

func New(gw gateway.Gateway, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.With(zap.String("user_id", opts.User.ID.String()))

	s := &Session{
		User:     opts.User,
		Registry: registry.New(),
		Habits:   localstore.New[habit.Habit](),
		Tasks:    localstore.New[habit.Task](),
		Goals:    localstore.New[habit.Goal](),
		log:      log,
		onAuth:   opts.OnAuthExpired,
	}

	s.Challenges = challenges.NewStore(gw, challenges.Options{
		UserID:        opts.User.ID,
		DisplayName:   opts.User.Username,
		Timeout:       opts.MutationTimeout,
		Logger:        log,
		Now:           opts.Now,
		OnAuthExpired: s.authExpired,
	})
	s.Friends = friends.NewManager(gw, friends.Options{
		UserID:          opts.User.ID,
		Username:        opts.User.Username,
		Timeout:         opts.MutationTimeout,
		MinSyncInterval: opts.MinSyncInterval,
		Logger:          log,
		Now:             opts.Now,
		OnAuthExpired:   s.authExpired,
	})

	for kind, inst := range map[registry.Kind]any{
		registry.KindHabits:     s.Habits,
		registry.KindTasks:      s.Tasks,
		registry.KindGoals:      s.Goals,
		registry.KindChallenges: s.Challenges,
		registry.KindFriends:    s.Friends,
	} {
		if err := s.Registry.Register(kind, inst); err != nil {
			return nil, fmt.Errorf("build session: %w", err)
		}
	}

	s.Feed = feed.NewAggregator(gw, s.Registry, feed.Options{
		UserID:        opts.User.ID,
		Username:      opts.User.Username,
		Limits:        opts.FeedLimits,
		RemoteEnabled: opts.RemoteActivitiesEnabled,
		Timeout:       opts.MutationTimeout,
		Logger:        log,
		Now:           opts.Now,
	})
	s.Stats = userstats.NewProvider(gw, s.Registry, userstats.Options{
		UserID:   opts.User.ID,
		Timeout:  opts.StatsTimeout,
		CacheTTL: opts.StatsCacheTTL,
		Cache:    opts.StatsCache,
		Logger:   log,
		Now:      opts.Now,
	})

	log.Info("session started")
	return s, nil
}

// Dispatch runs cmd against the owning store. The result is the created
// entity for CreateChallenge and SendFriendRequest, nil otherwise.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (any, error) {
	if s.SignedOut() {
		return nil, ErrSignedOut
	}

	start := time.Now()
	res, err := s.dispatch(ctx, cmd)

	fields := []zap.Field{
		zap.String("command", cmd.Name()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
		s.log.Warn("command failed", fields...)
	} else {
		s.log.Info("command completed", fields...)
	}
	return res, err
}

func (s *Session) dispatch(ctx context.Context, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case JoinChallenge:
		return nil, s.Challenges.Join(ctx, c.ChallengeID)
	case LeaveChallenge:
		return nil, s.Challenges.Leave(ctx, c.ChallengeID)
	case RefreshChallenges:
		return nil, s.Challenges.Refresh(ctx)
	case CreateChallenge:
		return s.Challenges.Create(ctx, c.Request)
	case SendFriendRequest:
		return s.Friends.SendRequest(ctx, c.ToUsername, c.Message)
	case AcceptFriendRequest:
		return nil, s.Friends.AcceptRequest(ctx, c.RequestID)
	case DeclineFriendRequest:
		return nil, s.Friends.DeclineRequest(ctx, c.RequestID)
	case CancelFriendRequest:
		return nil, s.Friends.CancelRequest(ctx, c.ToUsername)
	case RemoveFriend:
		return nil, s.Friends.RemoveFriend(ctx, c.FriendID)
	case SyncFriends:
		if c.Force {
			return nil, s.Friends.ForceRefresh(ctx)
		}
		return nil, s.Friends.Sync(ctx)
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown command %T", cmd))
	}
}

// SignOut tears the registry down and drops all session state.
func (s *Session) SignOut() {
	s.mu.Lock()
	if s.signedOut {
		s.mu.Unlock()
		return
	}
	s.signedOut = true
	s.mu.Unlock()

	s.Registry.TearDown()
	s.Challenges.Close()
	s.Friends.Close()
	s.log.Info("session signed out")
}

func (s *Session) SignedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedOut
}

func (s *Session) authExpired() {
	s.log.Warn("session authentication expired")
	if s.onAuth != nil {
		s.onAuth()
	}
}
