package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/session"
)

// parse runs the command tree over args and returns the step it would
// execute, along with the app so flag values can be checked.
func parse(t *testing.T, args ...string) (*step, *app, error) {
	t.Helper()
	var got *step
	a := &app{out: io.Discard}
	a.exec = func(ctx context.Context, st step) error {
		got = &st
		return nil
	}

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return got, a, err
}

func TestCommandIntents(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		args []string
		want session.Command
	}{
		{[]string{"join", id.String()}, session.JoinChallenge{ChallengeID: id}},
		{[]string{"leave", id.String()}, session.LeaveChallenge{ChallengeID: id}},
		{[]string{"accept", id.String()}, session.AcceptFriendRequest{RequestID: id}},
		{[]string{"decline", id.String()}, session.DeclineFriendRequest{RequestID: id}},
		{[]string{"unfriend", id.String()}, session.RemoveFriend{FriendID: id}},
		{[]string{"cancel", "bob"}, session.CancelFriendRequest{ToUsername: "bob"}},
		{[]string{"request", "bob"}, session.SendFriendRequest{ToUsername: "bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			st, _, err := parse(t, tt.args...)
			require.NoError(t, err)
			require.NotNil(t, st)
			assert.Equal(t, tt.want, st.cmd)
		})
	}
}

func TestRequestJoinsMessage(t *testing.T) {
	st, _, err := parse(t, "request", "bob", "want", "to", "run?")
	require.NoError(t, err)
	require.NotNil(t, st)

	cmd, ok := st.cmd.(session.SendFriendRequest)
	require.True(t, ok)
	require.NotNil(t, cmd.Message)
	assert.Equal(t, "want to run?", *cmd.Message)
}

func TestReadOnlyCommands(t *testing.T) {
	for _, args := range [][]string{
		{"refresh"},
		{"friends"},
		{"search", "bo"},
		{"feed"},
		{"feed", uuid.NewString()},
		{"stats", uuid.NewString()},
	} {
		st, _, err := parse(t, args...)
		require.NoError(t, err, args)
		require.NotNil(t, st, args)
		assert.Nil(t, st.cmd, args)
		assert.NotNil(t, st.view, args)
	}
}

func TestGlobalFlags(t *testing.T) {
	st, a, err := parse(t, "--seed", "local.json", "--watch", "2m", "friends")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "local.json", a.seedPath)
	assert.Equal(t, 2*time.Minute, a.watch)
}

func TestBadArgumentsAreValidationErrors(t *testing.T) {
	for _, args := range [][]string{
		{"join"},
		{"join", "not-a-uuid"},
		{"join", uuid.NewString(), "extra"},
		{"stats"},
		{"request"},
		{"feed", "a", "b"},
		{"refresh", "now"},
	} {
		st, _, err := parse(t, args...)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), args)
		assert.Nil(t, st, args)
	}
}

func TestUnknownCommand(t *testing.T) {
	st, _, err := parse(t, "dance")
	assert.Error(t, err)
	assert.Nil(t, st)
}

func TestNoCommandRunsNothing(t *testing.T) {
	st, _, err := parse(t)
	assert.NoError(t, err)
	assert.Nil(t, st)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, nil))
	assert.JSONEq(t, `{"ok":true}`, buf.String())

	buf.Reset()
	require.NoError(t, printJSON(&buf, []string{"a"}))
	assert.JSONEq(t, `["a"]`, buf.String())
}
