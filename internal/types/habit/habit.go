package habit

import (
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

type Habit struct {
	ID             uuid.UUID   `json:"id"`
	Title          string      `json:"title"`
	Frequency      Frequency   `json:"frequency"`
	CurrentStreak  int         `json:"current_streak"`
	LongestStreak  int         `json:"longest_streak"`
	CompletedDates []time.Time `json:"completed_dates"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (h Habit) Key() uuid.UUID { return h.ID }

// LastCompletedAt returns the most recent completion, if any.
func (h Habit) LastCompletedAt() (time.Time, bool) {
	var last time.Time
	for _, d := range h.CompletedDates {
		if d.After(last) {
			last = d
		}
	}
	return last, !last.IsZero()
}

// CompletedInCurrentPeriod checks the calendar day for daily habits and the
// ISO week for weekly ones, both in now's location.
func (h Habit) CompletedInCurrentPeriod(now time.Time) bool {
	last, ok := h.LastCompletedAt()
	if !ok || last.After(now) {
		return false
	}
	last = last.In(now.Location())

	switch h.Frequency {
	case FrequencyWeekly:
		ly, lw := last.ISOWeek()
		ny, nw := now.ISOWeek()
		return ly == ny && lw == nw
	default:
		return last.Year() == now.Year() && last.YearDay() == now.YearDay()
	}
}

type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (t Task) Key() uuid.UUID { return t.ID }

type Goal struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	TargetValue  int        `json:"target_value"`
	CurrentValue int        `json:"current_value"`
	IsCompleted  bool       `json:"is_completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (g Goal) Key() uuid.UUID { return g.ID }
