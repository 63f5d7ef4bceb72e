package challenges

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/gateway"
	"habitSocialAPI/internal/observe"
	"habitSocialAPI/internal/ranking"
	"habitSocialAPI/internal/reconcile"
	"habitSocialAPI/internal/timeout"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/validation"
)

const DefaultTimeout = 8 * time.Second

type Options struct {
	UserID      uuid.UUID
	DisplayName string
	Timeout     time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
	// OnAuthExpired runs when the remote side rejects the session.
	OnAuthExpired func()
}

type snapshot = []challenge.Challenge

// Store owns the session's challenges and the current user's participation.
// Remote calls never run under mu.
type Store struct {
	gw     gateway.Gateway
	me     uuid.UUID
	name   string
	limit  time.Duration
	log    *zap.Logger
	now    func() time.Time
	onAuth func()

	mu          sync.Mutex
	challenges  snapshot
	journal     *reconcile.Journal[snapshot]
	lastErr     error
	lastRefresh time.Time
	completed   map[uuid.UUID]bool

	// base is the last server snapshot installed. Failed mutations are
	// undone by rebuilding from it.
	base snapshot

	hub observe.Hub
}

func NewStore(gw gateway.Gateway, opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		gw:        gw,
		me:        opts.UserID,
		name:      opts.DisplayName,
		limit:     opts.Timeout,
		log:       opts.Logger.Named("challenges"),
		now:       opts.Now,
		onAuth:    opts.OnAuthExpired,
		journal:   reconcile.NewJournal[snapshot](),
		completed: make(map[uuid.UUID]bool),
	}
}

func (s *Store) UserID() uuid.UUID { return s.me }

// Refresh replaces the local set with the server's. On failure the previous
// set is kept and the error is published.
func (s *Store) Refresh(ctx context.Context) error {
	err := s.refresh(ctx)
	if err != nil {
		s.log.Warn("challenge refresh failed", zap.Error(err))
		s.authCheck(err)
		s.publishErr(err)
	}
	return err
}

func (s *Store) refresh(ctx context.Context) error {
	s.mu.Lock()
	since := s.journal.Mark()
	s.mu.Unlock()

	list, err := timeout.Run(ctx, s.limit, func(ctx context.Context) ([]challenge.Challenge, error) {
		return s.gw.ListChallenges(ctx, challenge.FilterAll)
	})
	if err != nil {
		return err
	}

	next := make(snapshot, 0, len(list))
	for _, c := range list {
		c.Normalize()
		next = append(next, c)
	}

	s.mu.Lock()
	merged, ok := s.journal.Replay(next, since)
	if !ok {
		s.mu.Unlock()
		s.log.Debug("dropping stale challenge snapshot")
		return nil
	}
	s.base = next
	s.challenges = merged
	s.lastRefresh = s.now()
	s.detectCompletionsLocked()
	s.mu.Unlock()

	s.hub.Publish()
	return nil
}

// Join adds the current user to a challenge. A second Join while the user
// already participates returns ErrAlreadyJoined without a remote call.
func (s *Store) Join(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	c, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return s.reject(apperr.Wrap(apperr.KindNotFound, apperr.CodeNotFound, "challenge not found", nil))
	}
	if _, joined := c.ParticipantFor(s.me); joined {
		s.mu.Unlock()
		return apperr.ErrAlreadyJoined
	}
	if !c.CanJoin(s.now()) {
		s.mu.Unlock()
		return s.reject(apperr.Validation("challenge is not open for joining"))
	}

	p := challenge.Participant{
		UserID:      s.me,
		DisplayName: s.name,
		TargetValue: c.TargetValue,
		JoinedAt:    s.now(),
	}
	apply := func(cs snapshot) snapshot { return withParticipant(cs, id, p) }
	op := s.journal.Begin(apply)
	s.challenges = apply(s.challenges)
	s.mu.Unlock()
	s.hub.Publish()

	got, err := timeout.Run(ctx, s.limit, func(ctx context.Context) (*challenge.Participant, error) {
		return s.gw.JoinChallenge(ctx, id)
	})

	s.mu.Lock()
	if err != nil {
		s.journal.Abort(op)
		s.challenges = s.journal.Rebuild(s.base)
		s.mu.Unlock()
		s.hub.Publish()
		s.log.Warn("join failed", zap.String("challenge_id", id.String()), zap.Error(err))
		return s.fail(ctx, err)
	}
	if got != nil {
		got.Normalize()
		// the closure above reads p, so replays use the server's row
		p = *got
		s.challenges = withParticipant(withoutParticipant(s.challenges, id, s.me), id, p)
	}
	s.journal.Confirm(op)
	s.mu.Unlock()
	s.hub.Publish()

	s.log.Info("joined challenge", zap.String("challenge_id", id.String()))
	return nil
}

// Leave removes the current user from a challenge. On failure the row from
// the last server snapshot, progress included, is restored.
func (s *Store) Leave(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	c, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return s.reject(apperr.Wrap(apperr.KindNotFound, apperr.CodeNotFound, "challenge not found", nil))
	}
	if _, joined := c.ParticipantFor(s.me); !joined {
		s.mu.Unlock()
		return s.reject(apperr.Validation("not participating in challenge"))
	}
	apply := func(cs snapshot) snapshot { return withoutParticipant(cs, id, s.me) }
	op := s.journal.Begin(apply)
	s.challenges = apply(s.challenges)
	s.mu.Unlock()
	s.hub.Publish()

	err := timeout.Do(ctx, s.limit, func(ctx context.Context) error {
		return s.gw.LeaveChallenge(ctx, id)
	})

	s.mu.Lock()
	if err != nil {
		s.journal.Abort(op)
		s.challenges = s.journal.Rebuild(s.base)
		s.mu.Unlock()
		s.hub.Publish()
		s.log.Warn("leave failed", zap.String("challenge_id", id.String()), zap.Error(err))
		return s.fail(ctx, err)
	}
	s.journal.Confirm(op)
	delete(s.completed, id)
	s.mu.Unlock()
	s.hub.Publish()

	s.log.Info("left challenge", zap.String("challenge_id", id.String()))
	return nil
}

// Create submits a creation request and inserts the created challenge.
func (s *Store) Create(ctx context.Context, req challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validation.Struct(req); err != nil {
		return nil, s.reject(err)
	}
	if !req.EndDate.After(s.now()) {
		return nil, s.reject(apperr.Validation("end_date must be in the future"))
	}

	created, err := timeout.Run(ctx, s.limit, func(ctx context.Context) (*challenge.Challenge, error) {
		return s.gw.CreateChallenge(ctx, req)
	})
	if err != nil {
		s.log.Warn("create challenge failed", zap.Error(err))
		return nil, s.fail(ctx, err)
	}

	c := created.Clone()
	c.Normalize()

	s.mu.Lock()
	if _, exists := s.findLocked(c.ID); !exists {
		s.challenges = append(cloneAll(s.challenges), c)
	}
	if !contains(s.base, c.ID) {
		s.base = append(cloneAll(s.base), c.Clone())
	}
	s.mu.Unlock()
	s.hub.Publish()

	s.log.Info("created challenge", zap.String("challenge_id", c.ID.String()))
	out := c.Clone()
	return &out, nil
}

func (s *Store) IsParticipating(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.findLocked(id)
	if !ok {
		return false
	}
	_, joined := c.ParticipantFor(s.me)
	return joined
}

func (s *Store) Challenge(id uuid.UUID) (challenge.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.findLocked(id)
	if !ok {
		return challenge.Challenge{}, false
	}
	return c.Clone(), true
}

func (s *Store) Snapshot() []challenge.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.challenges)
}

// MyActive lists unexpired challenges the user joined and has not completed.
func (s *Store) MyActive() []challenge.Challenge {
	now := s.now()
	return s.filter(func(c *challenge.Challenge) bool {
		p, ok := c.ParticipantFor(s.me)
		return ok && !c.IsExpired(now) && !c.CompletedBy(*p)
	})
}

func (s *Store) MyCompleted() []challenge.Challenge {
	return s.filter(func(c *challenge.Challenge) bool {
		p, ok := c.ParticipantFor(s.me)
		return ok && c.CompletedBy(*p)
	})
}

// Available lists joinable challenges the user is not in.
func (s *Store) Available() []challenge.Challenge {
	now := s.now()
	return s.filter(func(c *challenge.Challenge) bool {
		_, ok := c.ParticipantFor(s.me)
		return !ok && c.CanJoin(now)
	})
}

func (s *Store) Leaderboard(id uuid.UUID) ([]ranking.Ranked, error) {
	c, ok := s.Challenge(id)
	if !ok {
		return nil, apperr.Wrap(apperr.KindNotFound, apperr.CodeNotFound, "challenge not found", nil)
	}
	return ranking.Challenge(c), nil
}

func (s *Store) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	s.hub.Publish()
}

func (s *Store) Subscribe() (<-chan struct{}, func()) {
	return s.hub.Subscribe()
}

// Close drops subscribers and local state at sign-out.
func (s *Store) Close() {
	s.mu.Lock()
	s.challenges = nil
	s.base = nil
	s.journal.Reset()
	s.lastErr = nil
	s.mu.Unlock()
	s.hub.Close()
}

func (s *Store) filter(keep func(*challenge.Challenge) bool) []challenge.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []challenge.Challenge
	for i := range s.challenges {
		if keep(&s.challenges[i]) {
			out = append(out, s.challenges[i].Clone())
		}
	}
	return out
}

func (s *Store) findLocked(id uuid.UUID) (*challenge.Challenge, bool) {
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			return &s.challenges[i], true
		}
	}
	return nil, false
}

// detectCompletionsLocked logs each challenge the user completes once.
func (s *Store) detectCompletionsLocked() {
	for _, c := range s.challenges {
		if _, ok := c.ParticipantFor(s.me); !ok {
			continue
		}
		for _, r := range ranking.Challenge(c) {
			if r.Participant.UserID != s.me {
				continue
			}
			if r.IsCompleted && !s.completed[c.ID] {
				s.completed[c.ID] = true
				s.log.Info("challenge completed",
					zap.String("challenge_id", c.ID.String()),
					zap.String("title", c.Title),
					zap.Int("rank", r.Rank),
				)
			}
			break
		}
	}
}

// fail publishes a remote failure. Conflicts mean the cache is stale, so a
// silent refresh runs first. Auth failures go to the re-auth hook.
func (s *Store) fail(ctx context.Context, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		if rerr := s.refresh(ctx); rerr != nil {
			s.log.Debug("silent refresh after conflict failed", zap.Error(rerr))
		}
	case apperr.KindAuth:
		s.authCheck(err)
	}
	s.publishErr(err)
	return err
}

// reject publishes a local precondition failure.
func (s *Store) reject(err error) error {
	s.publishErr(err)
	return err
}

func (s *Store) authCheck(err error) {
	if apperr.KindOf(err) == apperr.KindAuth && s.onAuth != nil {
		s.onAuth()
	}
}

func (s *Store) publishErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.hub.Publish()
}

func contains(cs snapshot, id uuid.UUID) bool {
	for i := range cs {
		if cs[i].ID == id {
			return true
		}
	}
	return false
}

func cloneAll(cs snapshot) snapshot {
	out := make(snapshot, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}

// withParticipant returns a copy of cs with p in challenge id, unless a row
// for that user is already present.
func withParticipant(cs snapshot, id uuid.UUID, p challenge.Participant) snapshot {
	out := make(snapshot, len(cs))
	copy(out, cs)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if _, ok := out[i].ParticipantFor(p.UserID); ok {
			return out
		}
		c := out[i].Clone()
		c.Participants = append(c.Participants, p)
		out[i] = c
		return out
	}
	return out
}

func withoutParticipant(cs snapshot, id, userID uuid.UUID) snapshot {
	out := make(snapshot, len(cs))
	copy(out, cs)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		c := out[i].Clone()
		kept := c.Participants[:0]
		for _, p := range c.Participants {
			if p.UserID != userID {
				kept = append(kept, p)
			}
		}
		c.Participants = kept
		out[i] = c
		return out
	}
	return out
}
