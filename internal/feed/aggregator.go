package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitSocialAPI/internal/localstore"
	"habitSocialAPI/internal/registry"
	"habitSocialAPI/internal/timeout"
	"habitSocialAPI/internal/types/activity"
	"habitSocialAPI/internal/types/habit"
)

// Limits caps how many items of each kind the self feed draws from.
type Limits struct {
	Habits int
	Tasks  int
	Goals  int
}

var DefaultLimits = Limits{Habits: 3, Tasks: 2, Goals: 2}

// Source is the remote half of the feed.
type Source interface {
	FetchActivities(ctx context.Context, scope activity.Scope) ([]activity.SocialActivity, error)
}

type Options struct {
	UserID        uuid.UUID
	Username      string
	Limits        Limits
	RemoteEnabled bool
	Timeout       time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// Aggregator builds feeds on demand. It holds no feed state; self activity
// is read from the registry's stores on every call.
type Aggregator struct {
	src    Source
	reg    *registry.Registry
	me     uuid.UUID
	name   string
	limits Limits
	remote bool
	limit  time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewAggregator(src Source, reg *registry.Registry, opts Options) *Aggregator {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		src:    src,
		reg:    reg,
		me:     opts.UserID,
		name:   opts.Username,
		limits: opts.Limits,
		remote: opts.RemoteEnabled && src != nil,
		limit:  opts.Timeout,
		log:    opts.Logger.Named("feed"),
		now:    opts.Now,
	}
}

// Activities returns userID's activity, newest first. The current user's
// feed is synthesized from local stores; anyone else's comes from the
// remote source and is empty when that source is off or failing.
func (a *Aggregator) Activities(ctx context.Context, userID uuid.UUID) ([]activity.SocialActivity, error) {
	if userID == a.me {
		out := a.synthesize()
		Sort(out)
		return out, nil
	}

	out := a.fetch(ctx, activity.UserScope(userID))
	filtered := out[:0]
	for _, act := range out {
		if act.UserID == userID {
			filtered = append(filtered, act)
		}
	}
	Sort(filtered)
	return filtered, nil
}

// FriendsFeed returns friends' activity without the viewer's own entries.
func (a *Aggregator) FriendsFeed(ctx context.Context) ([]activity.SocialActivity, error) {
	out := a.fetch(ctx, activity.ScopeFriends)
	filtered := out[:0]
	for _, act := range out {
		if act.UserID != a.me {
			filtered = append(filtered, act)
		}
	}
	Sort(filtered)
	return filtered, nil
}

func (a *Aggregator) fetch(ctx context.Context, scope activity.Scope) []activity.SocialActivity {
	if !a.remote {
		return nil
	}
	acts, err := timeout.Run(ctx, a.limit, func(ctx context.Context) ([]activity.SocialActivity, error) {
		return a.src.FetchActivities(ctx, scope)
	})
	if err != nil {
		a.log.Warn("remote activity unavailable, using local only",
			zap.String("scope", string(scope)),
			zap.Error(err),
		)
		return nil
	}
	return acts
}

func (a *Aggregator) synthesize() []activity.SocialActivity {
	habits := registry.Resolve[*localstore.HabitStore](nil, true, a.reg, registry.KindHabits, localstore.ReadOnly[habit.Habit])
	tasks := registry.Resolve[*localstore.TaskStore](nil, true, a.reg, registry.KindTasks, localstore.ReadOnly[habit.Task])
	goals := registry.Resolve[*localstore.GoalStore](nil, true, a.reg, registry.KindGoals, localstore.ReadOnly[habit.Goal])

	var out []activity.SocialActivity
	out = append(out, a.habitActivities(habits)...)
	out = append(out, a.taskActivities(tasks)...)
	out = append(out, a.goalActivities(goals)...)
	return out
}

func (a *Aggregator) habitActivities(s *localstore.HabitStore) []activity.SocialActivity {
	now := a.now()
	type done struct {
		h    habit.Habit
		last time.Time
	}
	var completed []done
	for _, h := range s.Snapshot() {
		if !h.CompletedInCurrentPeriod(now) {
			continue
		}
		last, _ := h.LastCompletedAt()
		completed = append(completed, done{h, last})
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].last.After(completed[j].last)
	})
	if len(completed) > a.limits.Habits {
		completed = completed[:a.limits.Habits]
	}

	out := make([]activity.SocialActivity, 0, len(completed))
	for _, d := range completed {
		kind := activity.TypeHabitCompleted
		desc := fmt.Sprintf("Completed %s", d.h.Title)
		if d.h.CurrentStreak > 1 {
			kind = activity.TypeHabitStreak
			unit := "day"
			if d.h.Frequency == habit.FrequencyWeekly {
				unit = "week"
			}
			desc = fmt.Sprintf("%d %s streak on %s", d.h.CurrentStreak, unit, d.h.Title)
		}
		out = append(out, a.local(kind, d.h.ID, d.last, desc, &activity.Payload{
			Habit: &activity.HabitSummary{ID: d.h.ID, Title: d.h.Title, Streak: d.h.CurrentStreak},
		}))
	}
	return out
}

func (a *Aggregator) taskActivities(s *localstore.TaskStore) []activity.SocialActivity {
	tasks := localstore.CompletedTasks(s)
	if len(tasks) > a.limits.Tasks {
		tasks = tasks[:a.limits.Tasks]
	}
	out := make([]activity.SocialActivity, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, a.local(activity.TypeTaskCompleted, t.ID, *t.CompletedAt,
			fmt.Sprintf("Completed task %s", t.Title),
			&activity.Payload{Task: &activity.TaskSummary{ID: t.ID, Title: t.Title}},
		))
	}
	return out
}

func (a *Aggregator) goalActivities(s *localstore.GoalStore) []activity.SocialActivity {
	goals := localstore.CompletedGoals(s)
	if len(goals) > a.limits.Goals {
		goals = goals[:a.limits.Goals]
	}
	out := make([]activity.SocialActivity, 0, len(goals))
	for _, g := range goals {
		out = append(out, a.local(activity.TypeGoalCompleted, g.ID, *g.CompletedAt,
			fmt.Sprintf("Reached goal %s", g.Title),
			&activity.Payload{Goal: &activity.GoalSummary{
				ID:           g.ID,
				Title:        g.Title,
				CurrentValue: g.CurrentValue,
				TargetValue:  g.TargetValue,
			}},
		))
	}
	return out
}

func (a *Aggregator) local(kind activity.Type, itemID uuid.UUID, at time.Time, desc string, payload *activity.Payload) activity.SocialActivity {
	return activity.SocialActivity{
		ID:          StableID(kind, itemID, at),
		UserID:      a.me,
		Username:    a.name,
		Type:        kind,
		Description: desc,
		Timestamp:   at,
		Payload:     payload,
	}
}

// StableID derives a name-based id so the same item and completion always
// produce the same activity id.
func StableID(kind activity.Type, itemID uuid.UUID, at time.Time) uuid.UUID {
	name := fmt.Sprintf("%s/%s/%d", kind, itemID, at.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

// Sort orders newest first, breaking ties by id.
func Sort(acts []activity.SocialActivity) {
	sort.SliceStable(acts, func(i, j int) bool {
		if !acts[i].Timestamp.Equal(acts[j].Timestamp) {
			return acts[i].Timestamp.After(acts[j].Timestamp)
		}
		return acts[i].ID.String() < acts[j].ID.String()
	})
}
