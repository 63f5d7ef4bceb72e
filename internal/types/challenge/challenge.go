package challenge

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryHabits Category = "habits"
	CategoryTasks  Category = "tasks"
	CategoryGoals  Category = "goals"
	CategoryMixed  Category = "mixed"
)

type Type string

const (
	TypeStreak     Type = "streak"
	TypeCount      Type = "count"
	TypeCompletion Type = "completion"
)

type Filter string

const (
	FilterAll    Filter = "all"
	FilterMine   Filter = "mine"
	FilterPublic Filter = "public"
)

type Challenge struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	Title        string        `json:"title" db:"title"`
	Description  string        `json:"description" db:"description"`
	Category     Category      `json:"category" db:"category"`
	Type         Type          `json:"type" db:"type"`
	TargetValue  int           `json:"target_value" db:"target_value"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	EndDate      time.Time     `json:"end_date" db:"end_date"`
	CreatorID    uuid.UUID     `json:"creator_id" db:"creator_id"`
	IsPrivate    bool          `json:"is_private" db:"is_private"`
	IsActive     bool          `json:"is_active" db:"is_active"`
	Participants []Participant `json:"participants"`
}

// IsExpired reports whether now is past the end date.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.EndDate)
}

// CanJoin requires both the active flag and an unexpired window. A creator
// can deactivate a challenge before its end date.
func (c *Challenge) CanJoin(now time.Time) bool {
	return c.IsActive && !c.IsExpired(now)
}

func (c *Challenge) ParticipantFor(userID uuid.UUID) (*Participant, bool) {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i], true
		}
	}
	return nil, false
}

// Clone returns a copy that shares no slice memory with c.
func (c Challenge) Clone() Challenge {
	out := c
	if c.Participants != nil {
		out.Participants = make([]Participant, len(c.Participants))
		copy(out.Participants, c.Participants)
	}
	return out
}

// Normalize clamps negative values and collapses duplicate participants so
// at most one row per user remains. The last row for a user wins.
func (c *Challenge) Normalize() {
	if c.TargetValue < 0 {
		c.TargetValue = 0
	}
	if len(c.Participants) == 0 {
		return
	}

	index := make(map[uuid.UUID]int, len(c.Participants))
	out := c.Participants[:0]
	for _, p := range c.Participants {
		p.Normalize()
		if i, ok := index[p.UserID]; ok {
			out[i] = p
			continue
		}
		index[p.UserID] = len(out)
		out = append(out, p)
	}
	c.Participants = out
}

type Participant struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	CurrentValue int       `json:"current_value" db:"current_value"`
	TargetValue  int       `json:"target_value" db:"target_value"`
	JoinedAt     time.Time `json:"joined_at" db:"joined_at"`
}

func (p *Participant) Normalize() {
	if p.CurrentValue < 0 {
		p.CurrentValue = 0
	}
	if p.TargetValue < 0 {
		p.TargetValue = 0
	}
}

// IsCompleted judges the row against its own target copy. Views that have
// the challenge at hand use Challenge.CompletedBy instead.
func (p Participant) IsCompleted() bool {
	return p.CurrentValue >= p.TargetValue
}

// ProgressFraction is min(current/target, 1) for a positive target, else 0.
func (p Participant) ProgressFraction() float64 {
	return Fraction(p.CurrentValue, p.TargetValue)
}

// Percentage is the floored display percentage, 0..100.
func (p Participant) Percentage() int {
	return Percent(p.CurrentValue, p.TargetValue)
}

// TargetFor is the target p is judged against: the challenge target when it
// is positive, else the target stored on the participant row.
func TargetFor(challengeTarget int, p Participant) int {
	if challengeTarget > 0 {
		return challengeTarget
	}
	return p.TargetValue
}

func (c Challenge) CompletedBy(p Participant) bool {
	return p.CurrentValue >= TargetFor(c.TargetValue, p)
}

func Fraction(current, target int) float64 {
	if target <= 0 {
		return 0
	}
	f := float64(current) / float64(target)
	if f < 0 {
		return 0
	}
	return math.Min(f, 1.0)
}

func Percent(current, target int) int {
	if target <= 0 {
		return 0
	}
	if current >= target {
		return 100
	}
	if current <= 0 {
		return 0
	}
	// floor(0.7*100) is not reliably 70 in float64
	return current * 100 / target
}

type CreateChallengeRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Category    Category  `json:"category" validate:"omitempty,oneof=habits tasks goals mixed"`
	Type        Type      `json:"type" validate:"omitempty,oneof=streak count completion"`
	TargetValue int       `json:"target_value" validate:"required,min=1"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	IsPrivate   bool      `json:"is_private"`
}
