package gateway

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"habitSocialAPI/internal/types/activity"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/stats"
	"habitSocialAPI/internal/types/user"
)

const apiPrefix = "/api/v1"

// HTTPGateway talks to the social API over JSON/HTTP.
type HTTPGateway struct {
	client *ApiClient
}

var _ Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(config ClientConfig, token string) *HTTPGateway {
	client := NewApiClient(config)
	if token != "" {
		client.SetHeader("Authorization", "Bearer "+token)
	}
	return &HTTPGateway{client: client}
}

// SetToken swaps the bearer token after re-authentication.
func (g *HTTPGateway) SetToken(token string) {
	if token == "" {
		g.client.RemoveHeader("Authorization")
		return
	}
	g.client.SetHeader("Authorization", "Bearer "+token)
}

func (g *HTTPGateway) Close() {
	g.client.Close()
}

// CurrentUser returns the profile the bearer token belongs to.
func (g *HTTPGateway) CurrentUser(ctx context.Context) (_ *user.User, err error) {
	defer func(start time.Time) { observe("current_user", start, err) }(time.Now())
	var u user.User
	if err = g.client.Get(ctx, apiPrefix+"/user", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (g *HTTPGateway) ListChallenges(ctx context.Context, filter challenge.Filter) (out []challenge.Challenge, err error) {
	defer func(start time.Time) { observe("list_challenges", start, err) }(time.Now())
	if filter == "" {
		filter = challenge.FilterAll
	}
	err = g.client.Get(ctx, apiPrefix+"/challenges?filter="+url.QueryEscape(string(filter)), &out)
	return out, err
}

func (g *HTTPGateway) CreateChallenge(ctx context.Context, req challenge.CreateChallengeRequest) (_ *challenge.Challenge, err error) {
	defer func(start time.Time) { observe("create_challenge", start, err) }(time.Now())
	var c challenge.Challenge
	if err = g.client.Post(ctx, apiPrefix+"/challenges", req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (g *HTTPGateway) JoinChallenge(ctx context.Context, challengeID uuid.UUID) (_ *challenge.Participant, err error) {
	defer func(start time.Time) { observe("join_challenge", start, err) }(time.Now())
	var p challenge.Participant
	if err = g.client.Post(ctx, apiPrefix+"/challenges/"+challengeID.String()+"/join", nil, &p); err != nil {
		return nil, err
	}
	if p.UserID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (g *HTTPGateway) LeaveChallenge(ctx context.Context, challengeID uuid.UUID) (err error) {
	defer func(start time.Time) { observe("leave_challenge", start, err) }(time.Now())
	return g.client.Delete(ctx, apiPrefix+"/challenges/"+challengeID.String()+"/join", nil)
}

func (g *HTTPGateway) SendFriendRequest(ctx context.Context, toUsername string, message *string) (_ *friendship.FriendRequest, err error) {
	defer func(start time.Time) { observe("send_friend_request", start, err) }(time.Now())
	var fr friendship.FriendRequest
	body := friendship.SendRequest{ToUsername: toUsername, Message: message}
	if err = g.client.Post(ctx, apiPrefix+"/friends/requests", body, &fr); err != nil {
		return nil, err
	}
	return &fr, nil
}

func (g *HTTPGateway) AcceptFriendRequest(ctx context.Context, requestID uuid.UUID) (err error) {
	defer func(start time.Time) { observe("accept_friend_request", start, err) }(time.Now())
	return g.client.Post(ctx, apiPrefix+"/friends/requests/"+requestID.String()+"/accept", nil, nil)
}

func (g *HTTPGateway) DeclineFriendRequest(ctx context.Context, requestID uuid.UUID) (err error) {
	defer func(start time.Time) { observe("decline_friend_request", start, err) }(time.Now())
	return g.client.Post(ctx, apiPrefix+"/friends/requests/"+requestID.String()+"/decline", nil, nil)
}

func (g *HTTPGateway) CancelFriendRequest(ctx context.Context, toUsername string) (err error) {
	defer func(start time.Time) { observe("cancel_friend_request", start, err) }(time.Now())
	return g.client.Delete(ctx, apiPrefix+"/friends/requests/outgoing/"+url.PathEscape(toUsername), nil)
}

func (g *HTTPGateway) RemoveFriend(ctx context.Context, friendID uuid.UUID) (err error) {
	defer func(start time.Time) { observe("remove_friend", start, err) }(time.Now())
	return g.client.Delete(ctx, apiPrefix+"/friends/"+friendID.String(), nil)
}

func (g *HTTPGateway) ListFriends(ctx context.Context) (out []friendship.Friend, err error) {
	defer func(start time.Time) { observe("list_friends", start, err) }(time.Now())
	err = g.client.Get(ctx, apiPrefix+"/friends", &out)
	return out, err
}

func (g *HTTPGateway) ListIncomingRequests(ctx context.Context) (out []friendship.FriendRequest, err error) {
	defer func(start time.Time) { observe("list_incoming_requests", start, err) }(time.Now())
	err = g.client.Get(ctx, apiPrefix+"/friends/requests/incoming", &out)
	return out, err
}

func (g *HTTPGateway) ListOutgoingRequests(ctx context.Context) (out []friendship.FriendRequest, err error) {
	defer func(start time.Time) { observe("list_outgoing_requests", start, err) }(time.Now())
	err = g.client.Get(ctx, apiPrefix+"/friends/requests/outgoing", &out)
	return out, err
}

func (g *HTTPGateway) SearchUsers(ctx context.Context, query string) (out []friendship.UserSummary, err error) {
	defer func(start time.Time) { observe("search_users", start, err) }(time.Now())
	err = g.client.Get(ctx, apiPrefix+"/users/search?q="+url.QueryEscape(query), &out)
	return out, err
}

func (g *HTTPGateway) GetUserStats(ctx context.Context, userID uuid.UUID) (_ *stats.UserStatistics, err error) {
	defer func(start time.Time) { observe("get_user_stats", start, err) }(time.Now())
	var s stats.UserStatistics
	if err = g.client.Get(ctx, apiPrefix+"/users/"+userID.String()+"/stats", &s); err != nil {
		return nil, err
	}
	s.Source = stats.SourceRemote
	return &s, nil
}

func (g *HTTPGateway) FetchActivities(ctx context.Context, scope activity.Scope) (out []activity.SocialActivity, err error) {
	defer func(start time.Time) { observe("fetch_activities", start, err) }(time.Now())
	err = g.client.Get(ctx, apiPrefix+"/activities?scope="+url.QueryEscape(string(scope)), &out)
	return out, err
}
