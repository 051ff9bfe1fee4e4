package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-core/internal/domain"
	"pos-core/internal/repository"
)

const (
	DefaultAccessTokenExpiration  = 15 * time.Minute
	DefaultRefreshTokenExpiration = 7 * 24 * time.Hour
)

// AuthService authenticates operators and manages their sessions
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword, confirm string) error
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Claims carries the operator identity and a role snapshot
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	jwt.RegisteredClaims
}

// AuthOptions configures token lifetimes and credential handling
type AuthOptions struct {
	JWTSecret            string
	AccessExpiry         time.Duration
	RefreshExpiry        time.Duration
	AllowLegacyPlaintext bool
}

type authService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	audit            AuditTrail
	verifier         *PasswordVerifier
	opts             AuthOptions
	logger           *zap.Logger
	now              func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	audit AuditTrail,
	opts AuthOptions,
	logger *zap.Logger,
) AuthService {
	if opts.AccessExpiry <= 0 {
		opts.AccessExpiry = DefaultAccessTokenExpiration
	}
	if opts.RefreshExpiry <= 0 {
		opts.RefreshExpiry = DefaultRefreshTokenExpiration
	}
	return &authService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		audit:            audit,
		verifier:         NewPasswordVerifier(opts.AllowLegacyPlaintext),
		opts:             opts,
		logger:           logger.Named("auth"),
		now:              time.Now,
	}
}

// Authenticate returns the active operator whose username matches exactly
// and whose credential verifies. Legacy plaintext credentials are rehashed
// on success.
func (s *authService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userRepo.FindActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	ok, needsUpgrade := s.verifier.Verify(user.PasswordHash, password)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if needsUpgrade {
		s.upgradeCredential(ctx, user, password)
	}

	return user, nil
}

func (s *authService) upgradeCredential(ctx context.Context, user *domain.User, password string) {
	hashed, err := HashPassword(password)
	if err != nil {
		s.logger.Warn("legacy credential not upgraded", zap.String("username", user.Username), zap.Error(err))
		return
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		s.logger.Warn("legacy credential not upgraded", zap.String("username", user.Username), zap.Error(err))
		return
	}
	user.PasswordHash = hashed
	s.logger.Info("legacy credential upgraded to bcrypt", zap.String("username", user.Username))
}

func (s *authService) Login(ctx context.Context, username, password string) (string, string, *domain.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", "", nil, err
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Logout revokes the refresh token. Unknown tokens count as logged out.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if s.now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if !user.Active {
		return "", ErrInvalidToken
	}

	newAccessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired.Wrap(err)
		}
		return nil, ErrInvalidToken.Wrap(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ChangePassword verifies the current credential and stores a bcrypt hash of
// the new one. Every open session of the operator is revoked.
func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword, confirm string) error {
	if newPassword == "" || newPassword != confirm {
		return ErrInvalidPassword
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to find user: %w", err)
	}
	if ok, _ := s.verifier.Verify(user.PasswordHash, current); !ok || !user.Active {
		return ErrInvalidCredentials
	}

	hashed, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.refreshTokenRepo.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.Warn("sessions not revoked after password change", zap.String("username", user.Username), zap.Error(err))
	}

	if err := s.audit.Record(ctx, nil, AuditRecord{
		ActorID:    &user.ID,
		Action:     domain.ActionPasswordChange,
		EntityType: "user",
		EntityID:   user.ID.String(),
	}); err != nil {
		s.logger.Error("password change not audited", zap.String("username", user.Username), zap.Error(err))
	}

	return nil
}

func (s *authService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *authService) generateAccessToken(user *domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.RoleName(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.opts.JWTSecret))
}

func (s *authService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	now := s.now()
	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.opts.RefreshExpiry),
		CreatedAt: now,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return refreshToken.Token, nil
}
