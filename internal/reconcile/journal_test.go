package reconcile

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func add(v string) Apply[[]string] {
	return func(s []string) []string {
		if slices.Contains(s, v) {
			return s
		}
		return append(slices.Clone(s), v)
	}
}

func TestReplayKeepsInFlightMutation(t *testing.T) {
	j := NewJournal[[]string]()

	since := j.Mark()
	j.Begin(add("join"))

	out, ok := j.Replay([]string{"server"}, since)
	assert.True(t, ok)
	assert.Equal(t, []string{"server", "join"}, out)
	assert.Equal(t, 1, j.Pending())
}

func TestReplayKeepsMutationConfirmedAfterRefreshStarted(t *testing.T) {
	j := NewJournal[[]string]()

	id := j.Begin(add("join"))
	since := j.Mark()
	j.Confirm(id)

	// the snapshot was read before the join landed server side
	out, ok := j.Replay([]string{}, since)
	assert.True(t, ok)
	assert.Equal(t, []string{"join"}, out)
}

func TestReplayDropsMutationConfirmedBeforeRefresh(t *testing.T) {
	j := NewJournal[[]string]()

	id := j.Begin(add("join"))
	j.Confirm(id)
	since := j.Mark()

	out, ok := j.Replay([]string{"join"}, since)
	assert.True(t, ok)
	assert.Equal(t, []string{"join"}, out)
	assert.Equal(t, 0, j.Pending())
}

func TestAbortedMutationIsNotReplayed(t *testing.T) {
	j := NewJournal[[]string]()

	id := j.Begin(add("join"))
	since := j.Mark()
	j.Abort(id)

	out, ok := j.Replay(nil, since)
	assert.True(t, ok)
	assert.Empty(t, out)
}

func TestStaleRefreshIsRejected(t *testing.T) {
	j := NewJournal[[]string]()

	older := j.Mark()
	newer := j.Mark()

	_, ok := j.Replay([]string{"new"}, newer)
	assert.True(t, ok)

	_, ok = j.Replay([]string{"old"}, older)
	assert.False(t, ok)
}

func TestReplayIsIdempotentOverSnapshotContainingMutation(t *testing.T) {
	j := NewJournal[[]string]()

	since := j.Mark()
	j.Begin(add("join"))

	out, ok := j.Replay([]string{"join"}, since)
	assert.True(t, ok)
	assert.Equal(t, []string{"join"}, out)
}

func TestRebuildDropsAbortedMutationOnly(t *testing.T) {
	j := NewJournal[[]string]()

	kept := j.Begin(add("friend"))
	failed := j.Begin(add("join"))
	since := j.Mark()

	// the refresh already carries the join the server accepted
	base := []string{"server", "join"}
	_, ok := j.Replay(base, since)
	assert.True(t, ok)

	j.Abort(failed)
	assert.Equal(t, []string{"server", "join", "friend"}, j.Rebuild(base))

	j.Confirm(kept)
	assert.Equal(t, []string{"server", "friend"}, j.Rebuild([]string{"server"}))

	// a later Replay from the same refresh is still accepted
	_, ok = j.Replay(base, since)
	assert.True(t, ok)
}
