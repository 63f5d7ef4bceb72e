package gateway

import (
	"context"

	"github.com/google/uuid"

	"habitSocialAPI/internal/types/activity"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/stats"
)

// Gateway is the remote source of truth for challenges, friendships,
// statistics and activity. Failures are *apperr.Error values.
type Gateway interface {
	ListChallenges(ctx context.Context, filter challenge.Filter) ([]challenge.Challenge, error)
	CreateChallenge(ctx context.Context, req challenge.CreateChallengeRequest) (*challenge.Challenge, error)
	// JoinChallenge may return a nil participant when the server does not
	// echo the row back.
	JoinChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Participant, error)
	LeaveChallenge(ctx context.Context, challengeID uuid.UUID) error

	SendFriendRequest(ctx context.Context, toUsername string, message *string) (*friendship.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID uuid.UUID) error
	DeclineFriendRequest(ctx context.Context, requestID uuid.UUID) error
	CancelFriendRequest(ctx context.Context, toUsername string) error
	RemoveFriend(ctx context.Context, friendID uuid.UUID) error
	ListFriends(ctx context.Context) ([]friendship.Friend, error)
	ListIncomingRequests(ctx context.Context) ([]friendship.FriendRequest, error)
	ListOutgoingRequests(ctx context.Context) ([]friendship.FriendRequest, error)

	SearchUsers(ctx context.Context, query string) ([]friendship.UserSummary, error)
	GetUserStats(ctx context.Context, userID uuid.UUID) (*stats.UserStatistics, error)
	FetchActivities(ctx context.Context, scope activity.Scope) ([]activity.SocialActivity, error)
}
