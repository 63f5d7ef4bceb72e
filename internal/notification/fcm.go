package notification

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"habitSocialAPI/internal/types/notification"
)

var ErrAllPushesFailed = errors.New("all push notifications failed")

// messageSender is the part of *messaging.Client the service uses.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMService struct {
	client messageSender
	log    *zap.Logger
}

// NewFCMService reads base64 service-account JSON from
// FCM_SERVICE_ACCOUNT_JSON, falling back to the file at localFilePath.
func NewFCMService(ctx context.Context, localFilePath string, logger *zap.Logger) (*FCMService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opt option.ClientOption

	if encoded := os.Getenv("FCM_SERVICE_ACCOUNT_JSON"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		logger.Info("fcm credentials from environment")
	} else {
		if _, err := os.Stat(localFilePath); err != nil {
			return nil, fmt.Errorf("firebase credentials file %s: %w", localFilePath, err)
		}
		opt = option.WithCredentialsFile(localFilePath)
		logger.Info("fcm credentials from file", zap.String("path", localFilePath))
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return &FCMService{client: client, log: logger.Named("fcm")}, nil
}

// SendPush sends to each token individually. It fails only when every
// send fails.
func (s *FCMService) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	if len(tokens) == 0 {
		return nil
	}

	stringData := make(map[string]string, len(data))
	for k, v := range data {
		stringData[k] = fmt.Sprintf("%v", v)
	}

	sent, failed := 0, 0
	for _, t := range tokens {
		if _, err := s.client.Send(ctx, buildMessage(t, title, body, stringData)); err != nil {
			s.log.Warn("push send failed", zap.String("platform", t.Platform), zap.Error(err))
			failed++
			continue
		}
		sent++
	}

	s.log.Info("push batch finished", zap.Int("sent", sent), zap.Int("failed", failed))
	if sent == 0 && failed > 0 {
		return ErrAllPushesFailed
	}
	return nil
}

func buildMessage(t notification.DeviceToken, title, body string, data map[string]string) *messaging.Message {
	msg := &messaging.Message{
		Token:        t.Token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
	}
	switch t.Platform {
	case "ios":
		msg.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
		}
	case "web":
		msg.Webpush = &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{Title: title, Body: body},
		}
	default:
		msg.Android = &messaging.AndroidConfig{
			Priority:     "high",
			Notification: &messaging.AndroidNotification{Sound: "default"},
		}
	}
	return msg
}
