package registry

import (
	"fmt"
	"sync"

	"habitSocialAPI/internal/apperr"
)

type Kind string

const (
	KindHabits     Kind = "habits"
	KindTasks      Kind = "tasks"
	KindGoals      Kind = "goals"
	KindChallenges Kind = "challenges"
	KindFriends    Kind = "friends"
)

var ErrClosed = apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "session registry is closed")

// Registry maps a store kind to the single live instance for the session.
type Registry struct {
	mu        sync.RWMutex
	instances map[Kind]any
	closed    bool
}

func New() *Registry {
	return &Registry{instances: make(map[Kind]any)}
}

func (r *Registry) Register(kind Kind, instance any) error {
	if instance == nil {
		return fmt.Errorf("register %s: nil instance", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.instances[kind]; ok {
		return fmt.Errorf("register %s: already registered", kind)
	}
	r.instances[kind] = instance
	return nil
}

func (r *Registry) lookup(kind Kind) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, false
	}
	v, ok := r.instances[kind]
	return v, ok
}

// TearDown drops every instance. Later lookups miss and registrations fail.
func (r *Registry) TearDown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.instances = make(map[Kind]any)
	r.closed = true
}

func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Get returns the live instance of kind when it exists and has type T.
func Get[T any](r *Registry, kind Kind) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	v, ok := r.lookup(kind)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Resolve picks the store a view should read: the one passed explicitly,
// else the shared instance when viewing the current user, else a fresh
// fallback.
func Resolve[T comparable](requested T, isCurrentUser bool, r *Registry, kind Kind, fallback func() T) T {
	var zero T
	if requested != zero {
		return requested
	}
	if isCurrentUser {
		if shared, ok := Get[T](r, kind); ok {
			return shared
		}
	}
	return fallback()
}
