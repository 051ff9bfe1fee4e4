package transport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-core/internal/domain"
	"pos-core/internal/middleware"
	"pos-core/internal/service"
)

// fakeAuth accepts one username/password pair and delegates token checks to
// a real service so the auth middleware sees genuine tokens.
type fakeAuth struct {
	service.AuthService
	user       *domain.User
	password   string
	revoked    []string
	changedFor uuid.UUID
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		AuthService: service.NewAuthService(nil, nil, nil, service.AuthOptions{JWTSecret: testSecret}, zap.NewNop()),
		user: &domain.User{
			ID:       cashier.ID,
			Username: "alice",
			Active:   true,
			Role:     &domain.Role{ID: uuid.New(), Name: domain.RoleCashier},
		},
		password: "s3cret",
	}
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (string, string, *domain.User, error) {
	if username != f.user.Username || password != f.password {
		return "", "", nil, service.ErrInvalidCredentials
	}
	return "access-token", "refresh-token", f.user, nil
}

func (f *fakeAuth) Logout(ctx context.Context, refreshToken string) error {
	f.revoked = append(f.revoked, refreshToken)
	return nil
}

func (f *fakeAuth) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken != "refresh-token" {
		return "", service.ErrInvalidToken
	}
	return "new-access-token", nil
}

func (f *fakeAuth) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword, confirm string) error {
	if current != f.password {
		return service.ErrInvalidCredentials
	}
	if newPassword != confirm {
		return service.ErrInvalidPassword
	}
	f.changedFor = userID
	return nil
}

func (f *fakeAuth) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if userID != f.user.ID {
		return nil, service.ErrInvalidToken
	}
	return f.user, nil
}

func newAuthRouter(auth service.AuthService, loginLimit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	NewAuthHandler(auth, zap.NewNop()).RegisterRoutes(r, testRoutes(), loginLimit)
	return r
}

func TestLogin(t *testing.T) {
	router := newAuthRouter(newFakeAuth(), nil)

	w := do(t, router, http.MethodPost, "/api/auth/login", nil, map[string]string{"username": "alice", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[LoginResponse](t, w)
	assert.Equal(t, "access-token", resp.AccessToken)
	assert.Equal(t, "refresh-token", resp.RefreshToken)
	assert.Equal(t, domain.RoleCashier, resp.User.Role)

	w = do(t, router, http.MethodPost, "/api/auth/login", nil, map[string]string{"username": "Alice", "password": "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))

	w = do(t, router, http.MethodPost, "/api/auth/login", nil, map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limit := middleware.RateLimitMiddleware(client, middleware.RateLimitConfig{
		RequestsPerWindow: 3,
		Window:            time.Minute,
		KeyPrefix:         "login",
	}, zap.NewNop())
	router := newAuthRouter(newFakeAuth(), limit)

	body := map[string]string{"username": "alice", "password": "guess"}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodPost, "/api/auth/login", nil, body).Code)
	}
	w := do(t, router, http.MethodPost, "/api/auth/login", nil, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// refresh is not behind the login limiter
	w = do(t, router, http.MethodPost, "/api/auth/refresh", nil, map[string]string{"refresh_token": "refresh-token"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	auth := newFakeAuth()
	router := newAuthRouter(auth, nil)

	w := do(t, router, http.MethodPost, "/api/auth/refresh", nil, map[string]string{"refresh_token": "refresh-token"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new-access-token", decode[RefreshResponse](t, w).AccessToken)

	w = do(t, router, http.MethodPost, "/api/auth/refresh", nil, map[string]string{"refresh_token": "stale"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/api/auth/logout", nil, map[string]string{"refresh_token": "refresh-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/api/auth/logout", &cashier, map[string]string{"refresh_token": "refresh-token"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"refresh-token"}, auth.revoked)
}

func TestChangePasswordAndMe(t *testing.T) {
	auth := newFakeAuth()
	router := newAuthRouter(auth, nil)

	w := do(t, router, http.MethodPost, "/api/auth/password", &cashier, map[string]string{
		"current_password": "s3cret", "new_password": "n3w", "confirm_password": "other",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PASSWORD", errorCode(t, w))

	w = do(t, router, http.MethodPost, "/api/auth/password", &cashier, map[string]string{
		"current_password": "s3cret", "new_password": "n3w", "confirm_password": "n3w",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, cashier.ID, auth.changedFor)

	w = do(t, router, http.MethodGet, "/api/auth/me", &cashier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[OperatorProfile](t, w).Username)
}
