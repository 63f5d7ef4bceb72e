package ranking

import (
	"sort"

	"github.com/google/uuid"

	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/leaderboard"
)

type Ranked struct {
	Rank        int
	Participant challenge.Participant
	Target      int
	Fraction    float64
	Percentage  int
	IsCompleted bool
}

// Rank orders participants by current value descending, then join time
// ascending, then user id ascending, and assigns positions 1..N. target is
// the challenge target; when it is not positive each participant's own
// target is used. The input slice is not modified.
func Rank(participants []challenge.Participant, target int) []Ranked {
	sorted := make([]challenge.Participant, len(participants))
	copy(sorted, participants)
	for i := range sorted {
		sorted[i].Normalize()
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.CurrentValue != b.CurrentValue {
			return a.CurrentValue > b.CurrentValue
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID.String() < b.UserID.String()
	})

	out := make([]Ranked, len(sorted))
	for i, p := range sorted {
		t := challenge.TargetFor(target, p)
		out[i] = Ranked{
			Rank:        i + 1,
			Participant: p,
			Target:      t,
			Fraction:    challenge.Fraction(p.CurrentValue, t),
			Percentage:  challenge.Percent(p.CurrentValue, t),
			IsCompleted: p.CurrentValue >= t,
		}
	}
	return out
}

// Challenge ranks c's participants against c's target.
func Challenge(c challenge.Challenge) []Ranked {
	return Rank(c.Participants, c.TargetValue)
}

// Entries projects ranked rows into leaderboard entries, flagging me.
func Entries(ranked []Ranked, me uuid.UUID) []leaderboard.Entry {
	out := make([]leaderboard.Entry, len(ranked))
	for i, r := range ranked {
		out[i] = leaderboard.Entry{
			Rank:          r.Rank,
			UserID:        r.Participant.UserID,
			DisplayName:   r.Participant.DisplayName,
			CurrentValue:  r.Participant.CurrentValue,
			TargetValue:   r.Target,
			Percentage:    r.Percentage,
			IsCompleted:   r.IsCompleted,
			IsCurrentUser: r.Participant.UserID == me,
		}
	}
	return out
}

// Board builds the full leaderboard view for c as seen by me.
func Board(c challenge.Challenge, me uuid.UUID) leaderboard.Leaderboard {
	entries := Entries(Challenge(c), me)
	lb := leaderboard.Leaderboard{
		ChallengeID: c.ID,
		Entries:     entries,
		TotalUsers:  len(entries),
	}
	for i := range entries {
		if entries[i].IsCurrentUser {
			e := entries[i]
			lb.UserPosition = &e
			break
		}
	}
	return lb
}
