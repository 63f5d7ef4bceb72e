package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/types/user"
	"habitSocialAPI/utils"
)

const maxWebhookBody = 1 << 20

// UserProvisioner keeps the users table in step with Clerk.
type UserProvisioner interface {
	CreateUser(ctx context.Context, req user.CreateUserRequest) (*user.User, error)
	UpdateUserByClerkID(ctx context.Context, clerkID string, req user.CreateUserRequest) error
	DeleteUserByClerkID(ctx context.Context, clerkID string) error
}

type clerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkUserData struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ImageURL        string `json:"image_url"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (d clerkUserData) request() user.CreateUserRequest {
	username := d.Username
	if username == "" {
		username = d.FirstName + d.LastName
	}
	imageURL := d.ImageURL
	if imageURL == "" {
		imageURL = d.ProfileImageURL
	}
	req := user.CreateUserRequest{
		ClerkID:   d.ID,
		Username:  username,
		FirstName: d.FirstName,
		LastName:  d.LastName,
	}
	if imageURL != "" {
		req.ImageURL = &imageURL
	}
	return req
}

type WebhookHandler struct {
	users UserProvisioner
	wh    *svix.Webhook
}

// NewWebhookHandler verifies deliveries with the Svix signing secret. An
// empty secret disables verification.
func NewWebhookHandler(users UserProvisioner, secret string) (*WebhookHandler, error) {
	h := &WebhookHandler{users: users}
	if secret != "" {
		wh, err := svix.NewWebhook(secret)
		if err != nil {
			return nil, fmt.Errorf("decode webhook secret: %w", err)
		}
		h.wh = wh
	}
	return h, nil
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verify(r.Header, body); err != nil {
		utils.Logger.Warn("invalid webhook signature", zap.Error(err))
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	var data clerkUserData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook data")
		return
	}

	ctx := r.Context()
	switch event.Type {
	case "user.created":
		_, err = h.users.CreateUser(ctx, data.request())
	case "user.updated":
		err = h.users.UpdateUserByClerkID(ctx, data.ID, data.request())
	case "user.deleted":
		err = h.users.DeleteUserByClerkID(ctx, data.ID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			err = nil
		}
	default:
		utils.Logger.Debug("unhandled webhook event", zap.String("type", event.Type))
	}
	if err != nil {
		utils.Logger.Error("webhook processing failed", zap.String("type", event.Type), zap.Error(err))
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// verify checks the svix-id, svix-timestamp and svix-signature headers,
// rejecting deliveries older or newer than five minutes.
func (h *WebhookHandler) verify(header http.Header, body []byte) error {
	if h.wh == nil {
		return nil
	}
	return h.wh.Verify(body, header)
}
