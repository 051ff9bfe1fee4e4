package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"pos-core/internal/apperr"
	"pos-core/internal/service"
)

var ErrForbidden = apperr.Forbidden("FORBIDDEN", "insufficient permissions")

// RequirePermission lets the request through only when the role snapshot in
// the access token may perform op.
func RequirePermission(op service.Operation, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				logger.Warn("Principal not found in context", zap.String("operation", string(op)))
				RespondWithAppError(w, logger, ErrForbidden)
				return
			}

			if !service.Authorize(principal.Role, op) {
				logger.Warn("Operation not permitted for role",
					zap.String("username", principal.Username),
					zap.String("role", principal.Role),
					zap.String("operation", string(op)),
				)
				RespondWithAppError(w, logger, ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
