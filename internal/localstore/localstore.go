// Package localstore holds the current user's habits, tasks and goals in
// memory. The live instances are shared through the registry; other users
// get a read-only fallback that never persists anything.
package localstore

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/types/habit"
)

type Keyed interface {
	Key() uuid.UUID
}

type Store[T Keyed] struct {
	mu       sync.RWMutex
	items    map[uuid.UUID]T
	order    []uuid.UUID
	readOnly bool
}

func New[T Keyed]() *Store[T] {
	return &Store[T]{items: make(map[uuid.UUID]T)}
}

// ReadOnly returns an empty store whose writes fail with ErrReadOnly.
func ReadOnly[T Keyed]() *Store[T] {
	return &Store[T]{items: make(map[uuid.UUID]T), readOnly: true}
}

func (s *Store[T]) IsReadOnly() bool {
	return s.readOnly
}

// Put inserts or replaces an item, keeping its original position.
func (s *Store[T]) Put(item T) error {
	if s.readOnly {
		return apperr.ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := item.Key()
	if _, ok := s.items[k]; !ok {
		s.order = append(s.order, k)
	}
	s.items[k] = item
	return nil
}

func (s *Store[T]) Delete(id uuid.UUID) error {
	if s.readOnly {
		return apperr.ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return nil
	}
	delete(s.items, id)
	for i, k := range s.order {
		if k == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Replace swaps the full contents in one step.
func (s *Store[T]) Replace(items []T) error {
	if s.readOnly {
		return apperr.ErrReadOnly
	}
	next := make(map[uuid.UUID]T, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if _, ok := next[k]; !ok {
			order = append(order, k)
		}
		next[k] = it
	}

	s.mu.Lock()
	s.items = next
	s.order = order
	s.mu.Unlock()
	return nil
}

func (s *Store[T]) Get(id uuid.UUID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	return v, ok
}

// Snapshot returns the items in insertion order.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

type (
	HabitStore = Store[habit.Habit]
	TaskStore  = Store[habit.Task]
	GoalStore  = Store[habit.Goal]
)

// CompletedTasks returns completed tasks, most recently completed first.
func CompletedTasks(s *TaskStore) []habit.Task {
	var out []habit.Task
	for _, t := range s.Snapshot() {
		if t.IsCompleted && t.CompletedAt != nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(*out[j].CompletedAt)
	})
	return out
}

// CompletedGoals returns completed goals, most recently completed first.
func CompletedGoals(s *GoalStore) []habit.Goal {
	var out []habit.Goal
	for _, g := range s.Snapshot() {
		if g.IsCompleted && g.CompletedAt != nil {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(*out[j].CompletedAt)
	})
	return out
}
