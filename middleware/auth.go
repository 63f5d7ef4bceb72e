package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/utils"
)

type contextKey string

const UserIDKey contextKey = "userID"
const ClerkIDKey contextKey = "clerkID"

// UserResolver maps a verified Clerk subject to the internal user id.
type UserResolver interface {
	ResolveClerkID(ctx context.Context, clerkID string) (uuid.UUID, error)
}

// verifyToken returns the Clerk subject of a session token.
var verifyToken = func(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ClerkAuthMiddleware validates Clerk JWT tokens and puts both the Clerk id
// and the internal user id in the request context.
func ClerkAuthMiddleware(users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				authRejections.WithLabelValues("missing_header").Inc()
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				authRejections.WithLabelValues("bad_format").Inc()
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
				return
			}

			clerkID, err := verifyToken(r.Context(), token)
			if err != nil {
				utils.Logger.Debug("token verification failed", zap.Error(err))
				authRejections.WithLabelValues("invalid_token").Inc()
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, err := users.ResolveClerkID(r.Context(), clerkID)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindNotFound {
					authRejections.WithLabelValues("unknown_user").Inc()
					respondWithError(w, http.StatusUnauthorized, "User not registered")
					return
				}
				utils.Logger.Error("resolving user failed", zap.String("clerk_id", clerkID), zap.Error(err))
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), clerkID, userID)))
		})
	}
}

// WithUser returns ctx carrying an authenticated identity.
func WithUser(ctx context.Context, clerkID string, userID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, ClerkIDKey, clerkID)
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetClerkID extracts Clerk user ID from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}

// GetUserID extracts internal user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	reason := apperr.CodeInternal
	if code == http.StatusUnauthorized {
		reason = apperr.CodeUnauthorized
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": reason})
}
