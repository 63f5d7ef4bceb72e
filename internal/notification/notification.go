// Package notification delivers push messages to registered devices.
package notification

import (
	"context"

	"go.uber.org/zap"

	"habitSocialAPI/internal/types/notification"
)

// PushProvider sends one message to a set of device tokens.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// LogProvider only logs pushes. Used when FCM credentials are absent.
type LogProvider struct {
	Logger *zap.Logger
}

func (p LogProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("push (log only)",
		zap.Int("devices", len(tokens)),
		zap.String("title", title),
		zap.String("body", body),
	)
	return nil
}
