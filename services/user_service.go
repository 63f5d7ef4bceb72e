package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/cache"
	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/internal/types/stats"
	"habitSocialAPI/internal/types/user"
	"habitSocialAPI/internal/validation"
)

const (
	searchLimit     = 20
	clerkIDTTL      = 5 * time.Minute
	defaultStatsTTL = 2 * time.Minute
)

type UserService struct {
	db       DB
	stats    cache.Cache[stats.UserStatistics]
	statsTTL time.Duration
	ids      cache.Cache[uuid.UUID]
	log      *zap.Logger
}

// NewUserService caches statistics in statsCache; nil falls back to an
// in-memory cache.
func NewUserService(db DB, statsCache cache.Cache[stats.UserStatistics], statsTTL time.Duration, logger *zap.Logger) *UserService {
	if statsCache == nil {
		statsCache = cache.NewMemoryCache[stats.UserStatistics]()
	}
	if statsTTL <= 0 {
		statsTTL = defaultStatsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		db:       db,
		stats:    statsCache,
		statsTTL: statsTTL,
		ids:      cache.NewMemoryCache[uuid.UUID](),
		log:      logger.Named("users"),
	}
}

func (s *UserService) CreateUser(ctx context.Context, req user.CreateUserRequest) (*user.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	query := `
	INSERT INTO users (id, clerk_id, username, first_name, last_name, image_url, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	RETURNING id, clerk_id, username, first_name, last_name, image_url, created_at
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query,
		uuid.New(), req.ClerkID, req.Username, req.FirstName, req.LastName, req.ImageURL,
	).Scan(&u.ID, &u.ClerkID, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, apperr.Validation("username or clerk id already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user created", zap.String("user_id", u.ID.String()))
	return u, nil
}

func (s *UserService) UpdateUserByClerkID(ctx context.Context, clerkID string, req user.CreateUserRequest) error {
	query := `
	UPDATE users
	SET username = COALESCE(NULLIF($2, ''), username), first_name = $3, last_name = $4, image_url = $5
	WHERE clerk_id = $1
	`

	tag, err := s.db.Exec(ctx, query, clerkID, strings.TrimSpace(req.Username), req.FirstName, req.LastName, req.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrUserNotFound
	}
	_ = s.ids.Delete(ctx, clerkID)
	return nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, username, first_name, last_name, image_url, created_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID, &u.ClerkID, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL, &u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, apperr.ErrUserNotFound, "failed to get user")
	}
	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `
	SELECT id, clerk_id, username, first_name, last_name, image_url, created_at
	FROM users
	WHERE id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.ClerkID, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL, &u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, apperr.ErrUserNotFound, "failed to get user")
	}
	return u, nil
}

// ResolveClerkID maps an authenticated Clerk subject to the internal id.
func (s *UserService) ResolveClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	if id, err := s.ids.Get(ctx, clerkID); err == nil {
		return id, nil
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&id)
	if err != nil {
		return uuid.Nil, notFound(err, apperr.ErrUserNotFound, "failed to resolve user")
	}
	_ = s.ids.Set(ctx, clerkID, id, clerkIDTTL)
	return id, nil
}

// SearchUsers matches username and names case-insensitively, excluding me.
func (s *UserService) SearchUsers(ctx context.Context, me uuid.UUID, q string) ([]friendship.UserSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Validation("search query is required")
	}

	query := `
	SELECT id, username, first_name, last_name, image_url
	FROM users
	WHERE id != $1
	  AND (username ILIKE $2 OR first_name ILIKE $2 OR last_name ILIKE $2)
	ORDER BY username
	LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, me, "%"+escapeLike(q)+"%", searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	out := []friendship.UserSummary{}
	for rows.Next() {
		var u friendship.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUserStats returns cached statistics when fresh, else computes them.
func (s *UserService) GetUserStats(ctx context.Context, id uuid.UUID) (*stats.UserStatistics, error) {
	key := id.String()
	if cached, err := s.stats.Get(ctx, key); err == nil {
		return &cached, nil
	}

	query := `
	SELECT habits_count, tasks_count, completed_tasks, goals_count, completed_goals,
	       max_streak, active_challenges, friends_count
	FROM user_stats_view
	WHERE user_id = $1
	`

	st := stats.UserStatistics{UserID: id, Source: stats.SourceRemote}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&st.HabitsCount,
		&st.TasksCount,
		&st.CompletedTasks,
		&st.GoalsCount,
		&st.CompletedGoals,
		&st.MaxStreak,
		&st.ActiveChallenges,
		&st.FriendsCount,
	)
	if err != nil {
		return nil, notFound(err, apperr.ErrUserNotFound, "failed to compute stats")
	}
	st.ComputedAt = time.Now().UTC()

	if err := s.stats.Set(ctx, key, st, s.statsTTL); err != nil {
		s.log.Warn("stats cache write failed", zap.String("user_id", key), zap.Error(err))
	}
	return &st, nil
}

// InvalidateStats drops cached statistics after a mutation that affects them.
func (s *UserService) InvalidateStats(ctx context.Context, ids ...uuid.UUID) {
	for _, id := range ids {
		if err := s.stats.Delete(ctx, id.String()); err != nil {
			s.log.Debug("stats cache delete failed", zap.String("user_id", id.String()), zap.Error(err))
		}
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
