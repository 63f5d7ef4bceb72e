package stats

import (
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// UserStatistics is derived on demand and never persisted.
type UserStatistics struct {
	UserID           uuid.UUID `json:"user_id"`
	HabitsCount      int       `json:"habits_count" db:"habits_count"`
	TasksCount       int       `json:"tasks_count" db:"tasks_count"`
	CompletedTasks   int       `json:"completed_tasks" db:"completed_tasks"`
	GoalsCount       int       `json:"goals_count" db:"goals_count"`
	CompletedGoals   int       `json:"completed_goals" db:"completed_goals"`
	MaxStreak        int       `json:"max_streak" db:"max_streak"`
	ActiveChallenges int       `json:"active_challenges" db:"active_challenges"`
	FriendsCount     int       `json:"friends_count" db:"friends_count"`
	ComputedAt       time.Time `json:"computed_at"`
	Source           Source    `json:"source"`
}
