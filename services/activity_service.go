package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/types/activity"
)

const activityPageSize = 50

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type ActivityService struct {
	db  DB
	log *zap.Logger
}

func NewActivityService(db DB, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{db: db, log: logger.Named("activities")}
}

// Record inserts one activity row using q, which may be a transaction.
func (s *ActivityService) Record(ctx context.Context, q execer, userID uuid.UUID, kind activity.Type, desc string, payload *activity.Payload) error {
	var raw []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode activity payload: %w", err)
		}
		raw = b
	}

	query := `
	INSERT INTO activities (id, user_id, type, description, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	`

	if _, err := q.Exec(ctx, query, uuid.New(), userID, kind, desc, raw); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// List returns activity for scope as seen by viewer, newest first. A user
// scope is visible to that user and their friends; anyone else gets an
// empty list.
func (s *ActivityService) List(ctx context.Context, viewer uuid.UUID, scope activity.Scope) ([]activity.SocialActivity, error) {
	var (
		query string
		args  []any
	)
	if scope == activity.ScopeFriends {
		query = `
		SELECT a.id, a.user_id, u.username, a.type, a.description, a.payload, a.created_at
		FROM activities a
		JOIN users u ON u.id = a.user_id
		WHERE a.user_id IN (
			SELECT friend_id FROM friendships WHERE user_id = $1
			UNION
			SELECT user_id FROM friendships WHERE friend_id = $1
		)
		ORDER BY a.created_at DESC, a.id
		LIMIT $2
		`
		args = []any{viewer, activityPageSize}
	} else {
		target, ok := scope.User()
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("invalid activity scope %q", scope))
		}
		query = `
		SELECT a.id, a.user_id, u.username, a.type, a.description, a.payload, a.created_at
		FROM activities a
		JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $2
		  AND ($1::uuid = $2::uuid OR EXISTS (
			SELECT 1 FROM friendships f
			WHERE (f.user_id = $1 AND f.friend_id = $2) OR (f.user_id = $2 AND f.friend_id = $1)
		  ))
		ORDER BY a.created_at DESC, a.id
		LIMIT $3
		`
		args = []any{viewer, target, activityPageSize}
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}
	defer rows.Close()

	out := []activity.SocialActivity{}
	for rows.Next() {
		var (
			a   activity.SocialActivity
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Username, &a.Type, &a.Description, &raw, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(raw) > 0 {
			var p activity.Payload
			if err := json.Unmarshal(raw, &p); err != nil {
				s.log.Warn("skipping undecodable activity payload", zap.String("activity_id", a.ID.String()), zap.Error(err))
			} else {
				a.Payload = &p
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
