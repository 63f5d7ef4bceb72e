package session

import (
	"github.com/google/uuid"

	"habitSocialAPI/internal/types/challenge"
)

// Command is one user intent, dispatched through Session.Dispatch.
type Command interface {
	Name() string
}

type JoinChallenge struct{ ChallengeID uuid.UUID }

type LeaveChallenge struct{ ChallengeID uuid.UUID }

type RefreshChallenges struct{}

type CreateChallenge struct{ Request challenge.CreateChallengeRequest }

type SendFriendRequest struct {
	ToUsername string
	Message    *string
}

type AcceptFriendRequest struct{ RequestID uuid.UUID }

type DeclineFriendRequest struct{ RequestID uuid.UUID }

type CancelFriendRequest struct{ ToUsername string }

type RemoveFriend struct{ FriendID uuid.UUID }

// SyncFriends reconciles friend lists; Force bypasses the throttle.
type SyncFriends struct{ Force bool }

func (JoinChallenge) Name() string        { return "join_challenge" }
func (LeaveChallenge) Name() string       { return "leave_challenge" }
func (RefreshChallenges) Name() string    { return "refresh_challenges" }
func (CreateChallenge) Name() string      { return "create_challenge" }
func (SendFriendRequest) Name() string    { return "send_friend_request" }
func (AcceptFriendRequest) Name() string  { return "accept_friend_request" }
func (DeclineFriendRequest) Name() string { return "decline_friend_request" }
func (CancelFriendRequest) Name() string  { return "cancel_friend_request" }
func (RemoveFriend) Name() string         { return "remove_friend" }
func (SyncFriends) Name() string          { return "sync_friends" }
