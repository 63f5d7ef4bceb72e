package user

import (
	"time"

	"github.com/google/uuid"

	"habitSocialAPI/internal/types/friendship"
)

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ClerkID   string    `json:"clerk_id" db:"clerk_id"`
	Username  string    `json:"username" db:"username"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	ImageURL  *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (u User) Summary() friendship.UserSummary {
	return friendship.UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ImageURL:  u.ImageURL,
	}
}

type CreateUserRequest struct {
	ClerkID   string  `json:"clerk_id" validate:"required"`
	Username  string  `json:"username" validate:"required,max=64"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	ImageURL  *string `json:"image_url,omitempty"`
}
