package handlers

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/types/user"
)

type provisioner struct {
	created []user.CreateUserRequest
	updated []string
	deleted []string
}

func (p *provisioner) CreateUser(ctx context.Context, req user.CreateUserRequest) (*user.User, error) {
	p.created = append(p.created, req)
	return &user.User{ClerkID: req.ClerkID, Username: req.Username}, nil
}

func (p *provisioner) UpdateUserByClerkID(ctx context.Context, clerkID string, req user.CreateUserRequest) error {
	p.updated = append(p.updated, clerkID)
	return nil
}

func (p *provisioner) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	p.deleted = append(p.deleted, clerkID)
	return apperr.ErrUserNotFound
}

var webhookKey = []byte("super-secret-signing-key")

var webhookSecret = "whsec_" + base64.StdEncoding.EncodeToString(webhookKey)

func signedRequest(t *testing.T, body string, sentAt time.Time) *http.Request {
	t.Helper()
	signer, err := svix.NewWebhook(webhookSecret)
	require.NoError(t, err)
	sig, err := signer.Sign("msg_1", sentAt, []byte(body))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", strconv.FormatInt(sentAt.Unix(), 10))
	// a rotated secret leaves more than one signature in the header
	req.Header.Set("svix-signature", "v1,bogus "+sig)
	return req
}

func newWebhook(t *testing.T, p *provisioner) *WebhookHandler {
	t.Helper()
	h, err := NewWebhookHandler(p, webhookSecret)
	require.NoError(t, err)
	return h
}

func TestWebhookProvisionsUsers(t *testing.T) {
	p := &provisioner{}
	h := newWebhook(t, p)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t,
		`{"type":"user.created","data":{"id":"user_1","first_name":"Ada","last_name":"L","image_url":"https://img"}}`,
		time.Now()))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, p.created, 1)
	assert.Equal(t, "AdaL", p.created[0].Username)
	require.NotNil(t, p.created[0].ImageURL)
	assert.Equal(t, "https://img", *p.created[0].ImageURL)

	rec = httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, `{"type":"user.deleted","data":{"id":"user_1"}}`, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code, "deleting an unknown user is not an error")
	assert.Equal(t, []string{"user_1"}, p.deleted)
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	p := &provisioner{}
	h := newWebhook(t, p)
	body := `{"type":"user.updated","data":{"id":"user_1","username":"ada"}}`

	stale := httptest.NewRecorder()
	h.HandleClerkWebhook(stale, signedRequest(t, body, time.Now().Add(-time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, stale.Code)

	tampered := signedRequest(t, body, time.Now())
	tampered.Body = io.NopCloser(strings.NewReader(`{"type":"user.updated","data":{"id":"user_2","username":"eve"}}`))
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, tampered)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	missing := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.HandleClerkWebhook(rec, missing)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Empty(t, p.updated)
}

func TestWebhookWithoutSecretSkipsVerification(t *testing.T) {
	p := &provisioner{}
	h, err := NewWebhookHandler(p, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk",
		strings.NewReader(`{"type":"user.updated","data":{"id":"user_1","username":"ada"}}`))
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user_1"}, p.updated)
}

func TestWebhookSecretMustBeBase64(t *testing.T) {
	_, err := NewWebhookHandler(&provisioner{}, "whsec_%%%")
	assert.Error(t, err)
}
