package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pushnotif "habitSocialAPI/internal/notification"
	"habitSocialAPI/internal/types/notification"
	"habitSocialAPI/internal/validation"
)

type NotificationService struct {
	db         DB
	dispatcher *NotificationDispatcher
	log        *zap.Logger
}

func NewNotificationService(db DB, provider pushnotif.PushProvider, workers int, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{db: db, log: logger.Named("notifications")}
	s.dispatcher = NewNotificationDispatcher(s, provider, workers, logger)
	return s
}

// Notify stores n and queues it for push delivery.
func (s *NotificationService) Notify(ctx context.Context, n *notification.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	query := `
	INSERT INTO notifications (id, user_id, actor_id, type, title, body, data, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
	`

	_, err = s.db.Exec(ctx, query, n.ID, n.UserID, n.ActorID, n.Type, n.Title, n.Body, data, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if !s.dispatcher.Dispatch(n) {
		s.log.Warn("notification stored but not queued", zap.String("notification_id", n.ID.String()))
	}
	return nil
}

// RegisterDevice attaches a push token to userID. A token seen before
// moves to the new owner.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req notification.RegisterDeviceRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	query := `
	INSERT INTO device_tokens (token, user_id, platform, added_at, last_used)
	VALUES ($1, $2, $3, NOW(), NOW())
	ON CONFLICT (token) DO UPDATE
	SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform, last_used = NOW()
	`

	if _, err := s.db.Exec(ctx, query, req.Token, userID, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *NotificationService) DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
	SELECT token, platform, added_at, last_used
	FROM device_tokens
	WHERE user_id = $1
	ORDER BY last_used DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	defer rows.Close()

	var out []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform, &t.AddedAt, &t.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *NotificationService) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE notifications SET status = 'sent', sent_at = NOW() WHERE id = $1`, id)
	return err
}

func (s *NotificationService) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.Exec(ctx, `
	UPDATE notifications
	SET status = 'failed', failed_at = NOW(), failure_reason = $2
	WHERE id = $1
	`, id, reason)
	return err
}

func (s *NotificationService) Stop() {
	s.dispatcher.Stop()
}
