package activity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeHabitStreak         Type = "habit_streak"
	TypeHabitCompleted      Type = "habit_completed"
	TypeTaskCompleted       Type = "task_completed"
	TypeGoalProgress        Type = "goal_progress"
	TypeGoalCompleted       Type = "goal_completed"
	TypeChallengeJoined     Type = "challenge_joined"
	TypeChallengeCompleted  Type = "challenge_completed"
	TypeAchievementUnlocked Type = "achievement_unlocked"
	TypeFriendAdded         Type = "friend_added"
)

// Scope selects whose activity the remote source returns.
type Scope string

const ScopeFriends Scope = "friends"

func UserScope(userID uuid.UUID) Scope {
	return Scope("user:" + userID.String())
}

// User returns the id of a user scope.
func (s Scope) User() (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(string(s), "user:")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// SocialActivity is immutable once created.
type SocialActivity struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Username    string    `json:"username" db:"username"`
	Type        Type      `json:"type" db:"type"`
	Description string    `json:"description" db:"description"`
	Timestamp   time.Time `json:"timestamp" db:"created_at"`
	Payload     *Payload  `json:"payload,omitempty" db:"payload"`
}

// Payload carries at most one typed summary.
type Payload struct {
	Habit       *HabitSummary       `json:"habit,omitempty"`
	Task        *TaskSummary        `json:"task,omitempty"`
	Goal        *GoalSummary        `json:"goal,omitempty"`
	Challenge   *ChallengeSummary   `json:"challenge,omitempty"`
	Achievement *AchievementSummary `json:"achievement,omitempty"`
}

type HabitSummary struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Streak int       `json:"streak"`
}

type TaskSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type GoalSummary struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	CurrentValue int       `json:"current_value"`
	TargetValue  int       `json:"target_value"`
}

type ChallengeSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type AchievementSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Icon string    `json:"icon"`
}
