package notification

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeFriendRequestReceived Type = "friend_request_received"
	TypeFriendRequestAccepted Type = "friend_request_accepted"
)

type Notification struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	ActorID   *uuid.UUID     `json:"actor_id,omitempty" db:"actor_id"`
	Type      Type           `json:"type" db:"type"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body" db:"body"`
	Data      map[string]any `json:"data,omitempty" db:"data"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	Token    string    `json:"token" db:"token"`
	Platform string    `json:"platform" db:"platform"`
	AddedAt  time.Time `json:"added_at" db:"added_at"`
	LastUsed time.Time `json:"last_used" db:"last_used"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}
