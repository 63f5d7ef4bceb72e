package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/types/activity"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/utils"
)

// pendingPairUnique is the partial unique index allowing one pending
// request per unordered pair.
const pendingPairUnique = "friend_requests_pending_pair"

const maxRequestMessage = 280

type FriendService struct {
	db         DB
	activities *ActivityService
	stats      StatsInvalidator
	notifier   utils.NotificationCreator
	log        *zap.Logger
}

func NewFriendService(db DB, activities *ActivityService, stats StatsInvalidator, notifier utils.NotificationCreator, logger *zap.Logger) *FriendService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FriendService{
		db:         db,
		activities: activities,
		stats:      stats,
		notifier:   notifier,
		log:        logger.Named("friends"),
	}
}

// SendRequest creates a pending request from me to toUsername.
func (s *FriendService) SendRequest(ctx context.Context, me uuid.UUID, toUsername string, message *string) (*friendship.FriendRequest, error) {
	toUsername = strings.TrimSpace(toUsername)
	if toUsername == "" {
		return nil, apperr.Validation("username is required")
	}
	if message != nil && len(*message) > maxRequestMessage {
		return nil, apperr.Validation(fmt.Sprintf("message is longer than %d characters", maxRequestMessage))
	}

	fr := &friendship.FriendRequest{ID: uuid.New(), FromUserID: me, Message: message, Status: friendship.RequestPending}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT id, username FROM users WHERE LOWER(username) = LOWER($1)`, toUsername).
			Scan(&fr.ToUserID, &fr.ToUsername)
		if err != nil {
			return notFound(err, apperr.ErrUserNotFound, "failed to look up user")
		}
		if fr.ToUserID == me {
			return apperr.Validation("cannot send a friend request to yourself")
		}
		if err := tx.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, me).Scan(&fr.FromUsername); err != nil {
			return notFound(err, apperr.ErrUserNotFound, "failed to look up sender")
		}

		var friends, pending bool
		err = tx.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM friendships WHERE user_id = LEAST($1::uuid, $2::uuid) AND friend_id = GREATEST($1::uuid, $2::uuid)),
			EXISTS(SELECT 1 FROM friend_requests
			        WHERE status = 'pending'
			          AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1)))
		`, me, fr.ToUserID).Scan(&friends, &pending)
		if err != nil {
			return fmt.Errorf("failed to check relationship: %w", err)
		}
		if friends {
			return apperr.ErrAlreadyFriends
		}
		if pending {
			return apperr.ErrAlreadyPending
		}

		err = tx.QueryRow(ctx, `
		INSERT INTO friend_requests (id, from_user_id, to_user_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', NOW())
		RETURNING created_at
		`, fr.ID, me, fr.ToUserID, message).Scan(&fr.CreatedAt)
		if err != nil {
			if isUniqueViolation(err, pendingPairUnique) {
				return apperr.ErrAlreadyPending
			}
			return fmt.Errorf("failed to create friend request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("friend request sent", zap.String("request_id", fr.ID.String()), zap.String("from", me.String()))
	utils.FriendRequestReceived(ctx, s.notifier, *fr)
	return fr, nil
}

// AcceptRequest resolves a pending request addressed to me and creates the
// friendship in the same transaction.
func (s *FriendService) AcceptRequest(ctx context.Context, me uuid.UUID, requestID uuid.UUID) error {
	var fr friendship.FriendRequest
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
		UPDATE friend_requests fr
		SET status = 'accepted', responded_at = NOW()
		FROM users f, users t
		WHERE fr.id = $1 AND fr.to_user_id = $2 AND fr.status = 'pending'
		  AND f.id = fr.from_user_id AND t.id = fr.to_user_id
		RETURNING fr.id, fr.from_user_id, f.username, fr.to_user_id, t.username, fr.created_at
		`, requestID, me).Scan(&fr.ID, &fr.FromUserID, &fr.FromUsername, &fr.ToUserID, &fr.ToUsername, &fr.CreatedAt)
		if err != nil {
			return notFound(err, apperr.ErrInvalidState, "failed to accept friend request")
		}
		fr.Status = friendship.RequestAccepted

		_, err = tx.Exec(ctx, `
		INSERT INTO friendships (id, user_id, friend_id, created_at)
		VALUES ($1, LEAST($2::uuid, $3::uuid), GREATEST($2::uuid, $3::uuid), NOW())
		ON CONFLICT (user_id, friend_id) DO NOTHING
		`, uuid.New(), fr.FromUserID, fr.ToUserID)
		if err != nil {
			return fmt.Errorf("failed to create friendship: %w", err)
		}

		if err := s.activities.Record(ctx, tx, fr.ToUserID, activity.TypeFriendAdded, "Became friends with "+fr.FromUsername, nil); err != nil {
			return err
		}
		return s.activities.Record(ctx, tx, fr.FromUserID, activity.TypeFriendAdded, "Became friends with "+fr.ToUsername, nil)
	})
	if err != nil {
		return err
	}

	s.stats.InvalidateStats(ctx, fr.FromUserID, fr.ToUserID)
	s.log.Info("friend request accepted", zap.String("request_id", requestID.String()))
	utils.FriendRequestAccepted(ctx, s.notifier, fr)
	return nil
}

func (s *FriendService) DeclineRequest(ctx context.Context, me uuid.UUID, requestID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
	UPDATE friend_requests SET status = 'declined', responded_at = NOW()
	WHERE id = $1 AND to_user_id = $2 AND status = 'pending'
	`, requestID, me)
	if err != nil {
		return fmt.Errorf("failed to decline friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInvalidState
	}
	return nil
}

// CancelRequest withdraws my pending request to toUsername.
func (s *FriendService) CancelRequest(ctx context.Context, me uuid.UUID, toUsername string) error {
	tag, err := s.db.Exec(ctx, `
	UPDATE friend_requests fr SET status = 'cancelled', responded_at = NOW()
	FROM users u
	WHERE u.id = fr.to_user_id AND LOWER(u.username) = LOWER($2)
	  AND fr.from_user_id = $1 AND fr.status = 'pending'
	`, me, strings.TrimSpace(toUsername))
	if err != nil {
		return fmt.Errorf("failed to cancel friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInvalidState
	}
	return nil
}

// RemoveFriend deletes the friendship with friendID. Removing a friendship
// that does not exist succeeds.
func (s *FriendService) RemoveFriend(ctx context.Context, me uuid.UUID, friendID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
	DELETE FROM friendships
	WHERE user_id = LEAST($1::uuid, $2::uuid) AND friend_id = GREATEST($1::uuid, $2::uuid)
	`, me, friendID)
	if err != nil {
		return fmt.Errorf("failed to remove friend: %w", err)
	}
	s.stats.InvalidateStats(ctx, me, friendID)
	return nil
}

func (s *FriendService) ListFriends(ctx context.Context, me uuid.UUID) ([]friendship.Friend, error) {
	rows, err := s.db.Query(ctx, `
	SELECT f.id, u.id, u.username, u.image_url, f.created_at
	FROM friendships f
	JOIN users u ON u.id = CASE WHEN f.user_id = $1 THEN f.friend_id ELSE f.user_id END
	WHERE f.user_id = $1 OR f.friend_id = $1
	ORDER BY u.username
	`, me)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	out := []friendship.Friend{}
	for rows.Next() {
		f := friendship.Friend{UserID: me}
		if err := rows.Scan(&f.ID, &f.FriendID, &f.FriendUsername, &f.FriendImageURL, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *FriendService) ListIncoming(ctx context.Context, me uuid.UUID) ([]friendship.FriendRequest, error) {
	return s.listPending(ctx, "fr.to_user_id = $1", me)
}

func (s *FriendService) ListOutgoing(ctx context.Context, me uuid.UUID) ([]friendship.FriendRequest, error) {
	return s.listPending(ctx, "fr.from_user_id = $1", me)
}

func (s *FriendService) listPending(ctx context.Context, cond string, me uuid.UUID) ([]friendship.FriendRequest, error) {
	rows, err := s.db.Query(ctx, `
	SELECT fr.id, fr.from_user_id, f.username, fr.to_user_id, t.username, fr.message, fr.status, fr.created_at
	FROM friend_requests fr
	JOIN users f ON f.id = fr.from_user_id
	JOIN users t ON t.id = fr.to_user_id
	WHERE `+cond+` AND fr.status = 'pending'
	ORDER BY fr.created_at DESC
	`, me)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	defer rows.Close()

	out := []friendship.FriendRequest{}
	for rows.Next() {
		var fr friendship.FriendRequest
		err := rows.Scan(&fr.ID, &fr.FromUserID, &fr.FromUsername, &fr.ToUserID, &fr.ToUsername, &fr.Message, &fr.Status, &fr.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}
