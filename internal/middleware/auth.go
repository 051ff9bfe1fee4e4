package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-core/internal/service"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated operator of a request, taken from the
// access token.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     string
}

// TokenValidator parses and verifies access tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*service.Claims, error)
}

// AuthMiddleware validates the bearer token and stores the principal in the
// request context.
func AuthMiddleware(tokens TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, service.ErrTokenExpired) {
					RespondWithAppError(w, logger, service.ErrTokenExpired)
				} else {
					RespondWithAppError(w, logger, service.ErrInvalidToken)
				}
				return
			}
			if claims.UserID == uuid.Nil {
				logger.Debug("Missing user_id in token claims")
				RespondWithAppError(w, logger, service.ErrInvalidToken)
				return
			}

			principal := Principal{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}
			ctx := WithPrincipal(r.Context(), principal)
			noteOperator(ctx, principal.Username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal extracts the authenticated operator from the request context
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return "", false
	}
	return p.UserID.String(), true
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return "", false
	}
	return p.Role, true
}
