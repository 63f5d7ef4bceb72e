package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/types/activity"
	"habitSocialAPI/internal/types/challenge"
	"habitSocialAPI/internal/validation"
)

const participantUnique = "challenge_participants_pkey"

// StatsInvalidator drops cached statistics for users whose counts changed.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context, ids ...uuid.UUID)
}

type ChallengeService struct {
	db         DB
	activities *ActivityService
	stats      StatsInvalidator
	log        *zap.Logger
}

func NewChallengeService(db DB, activities *ActivityService, stats StatsInvalidator, logger *zap.Logger) *ChallengeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChallengeService{db: db, activities: activities, stats: stats, log: logger.Named("challenges")}
}

// List returns challenges visible to me: public ones plus those I created
// or joined. FilterMine and FilterPublic narrow that set.
func (s *ChallengeService) List(ctx context.Context, me uuid.UUID, filter challenge.Filter) ([]challenge.Challenge, error) {
	mine := `(c.creator_id = $1 OR EXISTS (
		SELECT 1 FROM challenge_participants cp WHERE cp.challenge_id = c.id AND cp.user_id = $1))`

	var where string
	switch filter {
	case challenge.FilterAll, "":
		where = "(NOT c.is_private OR " + mine + ")"
	case challenge.FilterMine:
		where = mine
	case challenge.FilterPublic:
		where = "NOT c.is_private"
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown challenge filter %q", filter))
	}

	query := `
	SELECT c.id, c.title, c.description, c.category, c.type, c.target_value,
	       c.created_at, c.end_date, c.creator_id, c.is_private, c.is_active
	FROM challenges c
	WHERE ` + where + `
	ORDER BY c.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, me)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var (
		out   []challenge.Challenge
		ids   []uuid.UUID
		index = map[uuid.UUID]int{}
	)
	for rows.Next() {
		var c challenge.Challenge
		err := rows.Scan(
			&c.ID, &c.Title, &c.Description, &c.Category, &c.Type, &c.TargetValue,
			&c.CreatedAt, &c.EndDate, &c.CreatorID, &c.IsPrivate, &c.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		c.Participants = []challenge.Participant{}
		index[c.ID] = len(out)
		ids = append(ids, c.ID)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []challenge.Challenge{}, nil
	}

	prows, err := s.db.Query(ctx, `
	SELECT challenge_id, user_id, display_name, current_value, target_value, joined_at
	FROM challenge_participants
	WHERE challenge_id = ANY($1)
	ORDER BY joined_at
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			cid uuid.UUID
			p   challenge.Participant
		)
		if err := prows.Scan(&cid, &p.UserID, &p.DisplayName, &p.CurrentValue, &p.TargetValue, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		i := index[cid]
		out[i].Participants = append(out[i].Participants, p)
	}
	return out, prows.Err()
}

func (s *ChallengeService) Create(ctx context.Context, me uuid.UUID, req challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	if err := validateCreate(&req, time.Now()); err != nil {
		return nil, err
	}

	query := `
	INSERT INTO challenges (id, title, description, category, type, target_value, created_at, end_date, creator_id, is_private, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7, $8, $9, TRUE)
	RETURNING created_at
	`

	c := &challenge.Challenge{
		ID:           uuid.New(),
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Type:         req.Type,
		TargetValue:  req.TargetValue,
		EndDate:      req.EndDate,
		CreatorID:    me,
		IsPrivate:    req.IsPrivate,
		IsActive:     true,
		Participants: []challenge.Participant{},
	}
	err := s.db.QueryRow(ctx, query,
		c.ID, c.Title, c.Description, c.Category, c.Type, c.TargetValue, c.EndDate, me, c.IsPrivate,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	s.log.Info("challenge created", zap.String("challenge_id", c.ID.String()), zap.String("creator_id", me.String()))
	return c, nil
}

func validateCreate(req *challenge.CreateChallengeRequest, now time.Time) error {
	req.Title = strings.TrimSpace(req.Title)
	if err := validation.Struct(req); err != nil {
		return err
	}
	if !req.EndDate.After(now) {
		return apperr.Validation("end_date must be in the future")
	}
	if req.Category == "" {
		req.Category = challenge.CategoryMixed
	}
	if req.Type == "" {
		req.Type = challenge.TypeCount
	}
	return nil
}

// Join adds me as a participant and records a challenge_joined activity in
// the same transaction.
func (s *ChallengeService) Join(ctx context.Context, me uuid.UUID, challengeID uuid.UUID) (*challenge.Participant, error) {
	var p *challenge.Participant
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var (
			title     string
			target    int
			active    bool
			endDate   time.Time
			private   bool
			creatorID uuid.UUID
		)
		err := tx.QueryRow(ctx, `
		SELECT title, target_value, is_active, end_date, is_private, creator_id
		FROM challenges WHERE id = $1
		`, challengeID).Scan(&title, &target, &active, &endDate, &private, &creatorID)
		if err != nil {
			return notFound(err, apperr.ErrNotFound, "failed to load challenge")
		}
		if !active || !endDate.After(time.Now()) {
			return apperr.ErrInactive
		}
		if private && creatorID != me {
			var friends bool
			err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id = LEAST($1::uuid, $2::uuid) AND friend_id = GREATEST($1::uuid, $2::uuid))
			`, me, creatorID).Scan(&friends)
			if err != nil {
				return fmt.Errorf("failed to check friendship: %w", err)
			}
			if !friends {
				return apperr.ErrNotFound
			}
		}

		joined := challenge.Participant{UserID: me, TargetValue: target}
		err = tx.QueryRow(ctx, `
		INSERT INTO challenge_participants (challenge_id, user_id, display_name, current_value, target_value, joined_at)
		SELECT $1, u.id, u.username, 0, $3, NOW() FROM users u WHERE u.id = $2
		RETURNING display_name, joined_at
		`, challengeID, me, target).Scan(&joined.DisplayName, &joined.JoinedAt)
		if err != nil {
			if isUniqueViolation(err, participantUnique) {
				return apperr.ErrAlreadyJoined
			}
			return notFound(err, apperr.ErrUserNotFound, "failed to join challenge")
		}

		payload := &activity.Payload{Challenge: &activity.ChallengeSummary{ID: challengeID, Title: title}}
		if err := s.activities.Record(ctx, tx, me, activity.TypeChallengeJoined, "Joined "+title, payload); err != nil {
			return err
		}
		p = &joined
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stats.InvalidateStats(ctx, me)
	s.log.Info("challenge joined", zap.String("challenge_id", challengeID.String()), zap.String("user_id", me.String()))
	return p, nil
}

func (s *ChallengeService) Leave(ctx context.Context, me uuid.UUID, challengeID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2`, challengeID, me)
	if err != nil {
		return fmt.Errorf("failed to leave challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingParticipant(ctx, challengeID)
	}

	s.stats.InvalidateStats(ctx, me)
	s.log.Info("challenge left", zap.String("challenge_id", challengeID.String()), zap.String("user_id", me.String()))
	return nil
}

// UpdateProgress sets my current value, clamped at zero. Crossing the
// target records a challenge_completed activity.
func (s *ChallengeService) UpdateProgress(ctx context.Context, me uuid.UUID, challengeID uuid.UUID, value int) (*challenge.Participant, error) {
	if value < 0 {
		value = 0
	}

	var p *challenge.Participant
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var (
			before int
			target int
			title  string
		)
		err := tx.QueryRow(ctx, `
		SELECT cp.current_value, c.target_value, c.title
		FROM challenge_participants cp
		JOIN challenges c ON c.id = cp.challenge_id
		WHERE cp.challenge_id = $1 AND cp.user_id = $2
		FOR UPDATE OF cp
		`, challengeID, me).Scan(&before, &target, &title)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.missingParticipant(ctx, challengeID)
			}
			return fmt.Errorf("failed to load participant: %w", err)
		}

		updated := challenge.Participant{UserID: me}
		err = tx.QueryRow(ctx, `
		UPDATE challenge_participants SET current_value = $3
		WHERE challenge_id = $1 AND user_id = $2
		RETURNING display_name, current_value, target_value, joined_at
		`, challengeID, me, value).Scan(&updated.DisplayName, &updated.CurrentValue, &updated.TargetValue, &updated.JoinedAt)
		if err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}

		goal := challenge.TargetFor(target, updated)
		if before < goal && updated.CurrentValue >= goal {
			payload := &activity.Payload{Challenge: &activity.ChallengeSummary{ID: challengeID, Title: title}}
			if err := s.activities.Record(ctx, tx, me, activity.TypeChallengeCompleted, "Completed "+title, payload); err != nil {
				return err
			}
		}
		p = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stats.InvalidateStats(ctx, me)
	return p, nil
}

func (s *ChallengeService) missingParticipant(ctx context.Context, challengeID uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM challenges WHERE id = $1)`, challengeID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check challenge: %w", err)
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return apperr.ErrNotAParticipant
}
