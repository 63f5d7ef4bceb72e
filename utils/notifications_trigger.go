package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/notification"
)

// NotificationCreator is the one method triggers need from the
// notification service.
type NotificationCreator interface {
	Notify(ctx context.Context, n *notification.Notification) error
}

// FriendRequestReceived tells the recipient of fr about it.
func FriendRequestReceived(ctx context.Context, notifier NotificationCreator, fr friendship.FriendRequest) {
	body := fr.FromUsername + " sent you a friend request"
	if fr.Message != nil && *fr.Message != "" {
		body += ": " + *fr.Message
	}
	send(ctx, notifier, &notification.Notification{
		UserID:  fr.ToUserID,
		ActorID: &fr.FromUserID,
		Type:    notification.TypeFriendRequestReceived,
		Title:   "New friend request",
		Body:    body,
		Data: map[string]any{
			"request_id": fr.ID.String(),
			"username":   fr.FromUsername,
		},
	})
}

// FriendRequestAccepted tells the sender of fr that it was accepted.
func FriendRequestAccepted(ctx context.Context, notifier NotificationCreator, fr friendship.FriendRequest) {
	send(ctx, notifier, &notification.Notification{
		UserID:  fr.FromUserID,
		ActorID: &fr.ToUserID,
		Type:    notification.TypeFriendRequestAccepted,
		Title:   "Friend request accepted",
		Body:    fr.ToUsername + " accepted your friend request",
		Data: map[string]any{
			"request_id": fr.ID.String(),
			"username":   fr.ToUsername,
		},
	})
}

func send(ctx context.Context, notifier NotificationCreator, n *notification.Notification) {
	if notifier == nil {
		return
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	if err := notifier.Notify(ctx, n); err != nil {
		Logger.Warn("notification not created",
			zap.String("type", string(n.Type)),
			zap.String("user_id", n.UserID.String()),
			zap.Error(err),
		)
	}
}
