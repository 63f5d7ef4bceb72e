package ranking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/types/challenge"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func participant(value int, joinedOffset time.Duration) challenge.Participant {
	return challenge.Participant{
		UserID:       uuid.New(),
		DisplayName:  "p",
		CurrentValue: value,
		TargetValue:  100,
		JoinedAt:     t0.Add(joinedOffset),
	}
}

func TestRankOrdersByValueThenJoinTime(t *testing.T) {
	late50 := participant(50, 2*time.Hour)
	early50 := participant(50, time.Hour)
	p30 := participant(30, 0)

	ranked := Rank([]challenge.Participant{p30, late50, early50}, 100)

	require.Len(t, ranked, 3)
	assert.Equal(t, early50.UserID, ranked[0].Participant.UserID)
	assert.Equal(t, late50.UserID, ranked[1].Participant.UserID)
	assert.Equal(t, p30.UserID, ranked[2].Participant.UserID)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestRankIsDeterministicOnFullTies(t *testing.T) {
	a := participant(50, 0)
	b := participant(50, 0)
	c := participant(30, 0)

	first := Rank([]challenge.Participant{a, b, c}, 100)
	for i := 0; i < 20; i++ {
		again := Rank([]challenge.Participant{c, b, a}, 100)
		for k := range first {
			assert.Equal(t, first[k].Participant.UserID, again[k].Participant.UserID)
		}
	}
	assert.Equal(t, c.UserID, first[2].Participant.UserID)
	assert.Less(t, first[0].Participant.UserID.String(), first[1].Participant.UserID.String())
}

func TestRankPercentageAndCompletion(t *testing.T) {
	p := challenge.Participant{UserID: uuid.New(), CurrentValue: 7, TargetValue: 10}

	r := Rank([]challenge.Participant{p}, 10)[0]

	assert.InDelta(t, 0.7, r.Fraction, 1e-9)
	assert.Equal(t, 70, r.Percentage)
	assert.False(t, r.IsCompleted)
}

func TestRankCapsAndFallsBackToParticipantTarget(t *testing.T) {
	over := challenge.Participant{UserID: uuid.New(), CurrentValue: 15, TargetValue: 10}
	zero := challenge.Participant{UserID: uuid.New(), CurrentValue: 0, TargetValue: 0}

	ranked := Rank([]challenge.Participant{zero, over}, 0)

	assert.Equal(t, 100, ranked[0].Percentage)
	assert.Equal(t, 1.0, ranked[0].Fraction)
	assert.True(t, ranked[0].IsCompleted)

	assert.Equal(t, 0, ranked[1].Percentage)
	assert.Equal(t, 0.0, ranked[1].Fraction)
	assert.True(t, ranked[1].IsCompleted, "0 >= 0 counts as complete")
}

func TestRankDoesNotMutateInput(t *testing.T) {
	in := []challenge.Participant{participant(1, 0), participant(9, 0)}
	first := in[0].UserID

	Rank(in, 10)

	assert.Equal(t, first, in[0].UserID)
}

func TestBoardFlagsCurrentUser(t *testing.T) {
	me := participant(20, 0)
	other := participant(40, 0)
	c := challenge.Challenge{ID: uuid.New(), TargetValue: 100, Participants: []challenge.Participant{me, other}}

	lb := Board(c, me.UserID)

	assert.Equal(t, 2, lb.TotalUsers)
	require.NotNil(t, lb.UserPosition)
	assert.Equal(t, 2, lb.UserPosition.Rank)
	assert.True(t, lb.UserPosition.IsCurrentUser)
	assert.False(t, lb.Entries[0].IsCurrentUser)
}
