package leaderboard

import "github.com/google/uuid"

type Entry struct {
	Rank          int       `json:"rank"`
	UserID        uuid.UUID `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	CurrentValue  int       `json:"current_value"`
	TargetValue   int       `json:"target_value"`
	Percentage    int       `json:"percentage"`
	IsCompleted   bool      `json:"is_completed"`
	IsCurrentUser bool      `json:"is_current_user"`
}

type Leaderboard struct {
	ChallengeID  uuid.UUID `json:"challenge_id"`
	Entries      []Entry   `json:"entries"`
	UserPosition *Entry    `json:"user_position"`
	TotalUsers   int       `json:"total_users"`
}
