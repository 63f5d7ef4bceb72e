package userstats

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitSocialAPI/internal/cache"
	"habitSocialAPI/internal/localstore"
	"habitSocialAPI/internal/registry"
	"habitSocialAPI/internal/timeout"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/habit"
	"habitSocialAPI/internal/types/stats"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 2 * time.Minute
)

type Source interface {
	GetUserStats(ctx context.Context, userID uuid.UUID) (*stats.UserStatistics, error)
}

// The registry entries for challenges and friends are read through these.
type activeChallenges interface {
	MyActive() []challenge.Challenge
}

type friendList interface {
	Friends() []friendship.Friend
}

type Options struct {
	UserID   uuid.UUID
	Timeout  time.Duration
	CacheTTL time.Duration
	Cache    cache.Cache[stats.UserStatistics]
	Logger   *zap.Logger
	Now      func() time.Time
}

// Provider computes statistics locally for the current user and fetches
// them, through a short-lived cache, for everyone else.
type Provider struct {
	src   Source
	reg   *registry.Registry
	me    uuid.UUID
	limit time.Duration
	ttl   time.Duration
	cache cache.Cache[stats.UserStatistics]
	log   *zap.Logger
	now   func() time.Time
}

func NewProvider(src Source, reg *registry.Registry, opts Options) *Provider {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache[stats.UserStatistics]()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		src:   src,
		reg:   reg,
		me:    opts.UserID,
		limit: opts.Timeout,
		ttl:   opts.CacheTTL,
		cache: opts.Cache,
		log:   opts.Logger.Named("userstats"),
		now:   opts.Now,
	}
}

func (p *Provider) Stats(ctx context.Context, userID uuid.UUID) (*stats.UserStatistics, error) {
	if userID == p.me {
		s := p.local()
		return &s, nil
	}

	key := userID.String()
	if cached, err := p.cache.Get(ctx, key); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrKeyNotFound) {
		p.log.Warn("stats cache read failed", zap.String("user_id", key), zap.Error(err))
	}

	s, err := timeout.Run(ctx, p.limit, func(ctx context.Context) (*stats.UserStatistics, error) {
		return p.src.GetUserStats(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	out := *s
	out.UserID = userID
	out.Source = stats.SourceRemote
	if out.ComputedAt.IsZero() {
		out.ComputedAt = p.now()
	}
	if err := p.cache.Set(ctx, key, out, p.ttl); err != nil {
		p.log.Warn("stats cache write failed", zap.String("user_id", key), zap.Error(err))
	}
	return &out, nil
}

// Invalidate drops a cached entry, e.g. after the user's friendship changes.
func (p *Provider) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := p.cache.Delete(ctx, userID.String()); err != nil {
		p.log.Debug("stats cache delete failed", zap.Error(err))
	}
}

func (p *Provider) local() stats.UserStatistics {
	habits := registry.Resolve[*localstore.HabitStore](nil, true, p.reg, registry.KindHabits, localstore.ReadOnly[habit.Habit])
	tasks := registry.Resolve[*localstore.TaskStore](nil, true, p.reg, registry.KindTasks, localstore.ReadOnly[habit.Task])
	goals := registry.Resolve[*localstore.GoalStore](nil, true, p.reg, registry.KindGoals, localstore.ReadOnly[habit.Goal])

	s := stats.UserStatistics{
		UserID:     p.me,
		ComputedAt: p.now(),
		Source:     stats.SourceLocal,
	}

	for _, h := range habits.Snapshot() {
		s.HabitsCount++
		s.MaxStreak = max(s.MaxStreak, h.CurrentStreak, h.LongestStreak)
	}
	for _, t := range tasks.Snapshot() {
		s.TasksCount++
		if t.IsCompleted {
			s.CompletedTasks++
		}
	}
	for _, g := range goals.Snapshot() {
		s.GoalsCount++
		if g.IsCompleted {
			s.CompletedGoals++
		}
	}
	if cs, ok := registry.Get[activeChallenges](p.reg, registry.KindChallenges); ok {
		s.ActiveChallenges = len(cs.MyActive())
	}
	if fl, ok := registry.Get[friendList](p.reg, registry.KindFriends); ok {
		s.FriendsCount = len(fl.Friends())
	}
	return s
}
