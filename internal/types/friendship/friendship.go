package friendship

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestDeclined  RequestStatus = "declined"
	RequestCancelled RequestStatus = "cancelled"
)

type FriendRequest struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	FromUserID   uuid.UUID     `json:"from_user_id" db:"from_user_id"`
	FromUsername string        `json:"from_username" db:"from_username"`
	ToUserID     uuid.UUID     `json:"to_user_id" db:"to_user_id"`
	ToUsername   string        `json:"to_username" db:"to_username"`
	Message      *string       `json:"message,omitempty" db:"message"`
	Status       RequestStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

func (r FriendRequest) IsPending() bool {
	return r.Status == RequestPending
}

// Friend is the current user's side of a symmetric friendship edge.
type Friend struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	FriendID       uuid.UUID `json:"friend_id" db:"friend_id"`
	FriendUsername string    `json:"friend_username" db:"friend_username"`
	FriendImageURL *string   `json:"friend_image_url,omitempty" db:"friend_image_url"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// RelationshipState is the pair state seen from the current user.
type RelationshipState string

const (
	StateNone            RelationshipState = "none"
	StatePendingOutgoing RelationshipState = "pending_outgoing"
	StatePendingIncoming RelationshipState = "pending_incoming"
	StateFriends         RelationshipState = "friends"
)

type SendRequest struct {
	ToUsername string  `json:"to_username" validate:"required"`
	Message    *string `json:"message,omitempty" validate:"omitempty,max=280"`
}

type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	ImageURL  *string   `json:"image_url,omitempty"`
}

type SearchResult struct {
	User  UserSummary       `json:"user"`
	State RelationshipState `json:"state"`
}
