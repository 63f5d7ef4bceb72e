package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/types/friendship"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	g := NewHTTPGateway(cfg, "token-123")
	t.Cleanup(g.Close)
	return g
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}

func TestJoinChallengeSendsBearerAndDecodesParticipant(t *testing.T) {
	challengeID := uuid.New()
	userID := uuid.New()

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/challenges/"+challengeID.String()+"/join", r.URL.Path)
		json.NewEncoder(w).Encode(challenge.Participant{UserID: userID, DisplayName: "ana", TargetValue: 10})
	})

	p, err := g.JoinChallenge(context.Background(), challengeID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, 10, p.TargetValue)
}

func TestErrorBodyIsMappedToTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
		kind   apperr.Kind
	}{
		{"already joined", http.StatusConflict, apperr.CodeAlreadyJoined, apperr.ErrAlreadyJoined, apperr.KindConflict},
		{"inactive", http.StatusConflict, apperr.CodeInactive, apperr.ErrInactive, apperr.KindConflict},
		{"not found", http.StatusNotFound, apperr.CodeNotFound, apperr.ErrNotFound, apperr.KindNotFound},
		{"unauthorized", http.StatusUnauthorized, "", apperr.ErrAuth, apperr.KindAuth},
		{"validation", http.StatusUnprocessableEntity, "", apperr.ErrValidation, apperr.KindValidation},
		{"server error", http.StatusInternalServerError, "", apperr.ErrNetwork, apperr.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.status, tt.code, tt.name)
			})

			_, err := g.JoinChallenge(context.Background(), uuid.New())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	srv.Close()

	g := NewHTTPGateway(cfg, "")
	_, err := g.ListFriends(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.True(t, apperr.Retryable(err))
}

func TestSendFriendRequestPostsBody(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var body friendship.SendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bob", body.ToUsername)
		if assert.NotNil(t, body.Message) {
			assert.Equal(t, "hi", *body.Message)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(friendship.FriendRequest{
			ID:         uuid.New(),
			ToUsername: body.ToUsername,
			Status:     friendship.RequestPending,
		})
	})

	msg := "hi"
	fr, err := g.SendFriendRequest(context.Background(), "bob", &msg)
	require.NoError(t, err)
	assert.Equal(t, "bob", fr.ToUsername)
	assert.True(t, fr.IsPending())
}

func TestSearchEscapesQuery(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a b&c", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode([]friendship.UserSummary{{ID: uuid.New(), Username: "a b&c"}})
	})

	users, err := g.SearchUsers(context.Background(), "a b&c")
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
