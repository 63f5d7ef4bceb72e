package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/types/activity"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/notification"
	"habitSocialAPI/internal/types/stats"
	"habitSocialAPI/internal/types/user"
	"habitSocialAPI/internal/validation"
	"habitSocialAPI/middleware"
	"habitSocialAPI/utils"
)

type ChallengeService interface {
	List(ctx context.Context, me uuid.UUID, filter challenge.Filter) ([]challenge.Challenge, error)
	Create(ctx context.Context, me uuid.UUID, req challenge.CreateChallengeRequest) (*challenge.Challenge, error)
	Join(ctx context.Context, me uuid.UUID, challengeID uuid.UUID) (*challenge.Participant, error)
	Leave(ctx context.Context, me uuid.UUID, challengeID uuid.UUID) error
	UpdateProgress(ctx context.Context, me uuid.UUID, challengeID uuid.UUID, value int) (*challenge.Participant, error)
}

type FriendService interface {
	SendRequest(ctx context.Context, me uuid.UUID, toUsername string, message *string) (*friendship.FriendRequest, error)
	AcceptRequest(ctx context.Context, me uuid.UUID, requestID uuid.UUID) error
	DeclineRequest(ctx context.Context, me uuid.UUID, requestID uuid.UUID) error
	CancelRequest(ctx context.Context, me uuid.UUID, toUsername string) error
	RemoveFriend(ctx context.Context, me uuid.UUID, friendID uuid.UUID) error
	ListFriends(ctx context.Context, me uuid.UUID) ([]friendship.Friend, error)
	ListIncoming(ctx context.Context, me uuid.UUID) ([]friendship.FriendRequest, error)
	ListOutgoing(ctx context.Context, me uuid.UUID) ([]friendship.FriendRequest, error)
}

type UserService interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	SearchUsers(ctx context.Context, me uuid.UUID, q string) ([]friendship.UserSummary, error)
	GetUserStats(ctx context.Context, id uuid.UUID) (*stats.UserStatistics, error)
}

type ActivityService interface {
	List(ctx context.Context, viewer uuid.UUID, scope activity.Scope) ([]activity.SocialActivity, error)
}

type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, userID uuid.UUID, req notification.RegisterDeviceRequest) error
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	reason := apperr.CodeInternal
	switch code {
	case http.StatusBadRequest:
		reason = apperr.CodeValidation
	case http.StatusUnauthorized:
		reason = apperr.CodeUnauthorized
	case http.StatusNotFound:
		reason = apperr.CodeNotFound
	}
	respondWithJSON(w, code, map[string]string{"error": message, "code": reason})
}

// respondWithAppError maps err to a status and reason code. Internal errors
// are logged and their message withheld.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		utils.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondWithJSON(w, status, map[string]string{"error": "Internal server error", "code": apperr.CodeOf(err)})
		return
	}

	message := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	respondWithJSON(w, status, map[string]string{"error": message, "code": apperr.CodeOf(err)})
}

// decodeJSON reads the body into dst and checks its validate tags. On
// failure it has already written the response.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validation.Struct(dst); err != nil {
		respondWithAppError(w, r, err)
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
	}
	return id, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
