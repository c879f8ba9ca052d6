package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/logger"
	"github.com/nkiryanov/taledynamic/internal/metrics"
	"github.com/nkiryanov/taledynamic/internal/models"
	"github.com/nkiryanov/taledynamic/internal/repository"
	"github.com/nkiryanov/taledynamic/internal/service/auth/tokenmanager"
)

// Token issuer used by the service
type TokenManager interface {
	IssueAccess(user models.User) (models.IssuedToken, error)
	NewRefresh(userID int64, ip string) (models.RefreshToken, error)
	ParseAccess(access string) (tokenmanager.AccessTokenClaims, error)
}

type Config struct {
	// Hasher to compare user passwords, DefaultHasher if nil
	Hasher PasswordHasher

	// Clock, time.Now if nil
	Now func() time.Time

	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// Auth service
// Issues sessions and keeps refresh token chains
type AuthService struct {
	tokens  TokenManager
	hasher  PasswordHasher
	storage repository.Storage

	now     func() time.Time
	logger  logger.Logger
	metrics *metrics.Metrics

	// Compared against when user not found, so unknown emails take as long as wrong passwords
	dummyHash string
}

func NewService(cfg Config, tokens TokenManager, storage repository.Storage) (*AuthService, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	dummyHash, err := cfg.Hasher.Hash("dummy-password")
	if err != nil {
		return nil, fmt.Errorf("hasher is not usable. Err: %w", err)
	}

	return &AuthService{
		tokens:    tokens,
		hasher:    cfg.Hasher,
		storage:   storage,
		now:       cfg.Now,
		logger:    cfg.Logger.With("service", "auth"),
		metrics:   cfg.Metrics,
		dummyHash: dummyHash,
	}, nil
}

// Authenticate user by email and password and start new session
// Returns apperrors.ErrUserNotFound if email or password is wrong
func (s *AuthService) Authenticate(ctx context.Context, email string, password string, ip string) (models.Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return models.Session{}, apperrors.ErrInvalidRequest
	}

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.Session{}, s.reject(err, "unknown email")
	case err != nil:
		return models.Session{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	err = s.hasher.Compare(user.HashedPassword, password)
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return models.Session{}, s.reject(apperrors.ErrUserNotFound, "wrong password", "user_id", user.ID)
	case err != nil:
		return models.Session{}, fmt.Errorf("can't compare password. Err: %w", err)
	}

	refresh, err := s.IssueRefresh(ctx, s.storage, user.ID, ip)
	if err != nil {
		return models.Session{}, err
	}

	session, err := s.newSession(user, refresh)
	if err != nil {
		return models.Session{}, err
	}

	s.logger.Info("user authenticated", "user_id", user.ID, "ip", ip)
	s.metrics.SessionEvent(metrics.EventAuthenticated)
	return session, nil
}

// Rotate refresh token: the old one is revoked and points to the new one
// Returns apperrors.ErrRefreshTokenNotFound if token unknown, revoked or expired
func (s *AuthService) Refresh(ctx context.Context, refresh string, ip string) (models.Session, error) {
	if refresh == "" {
		return models.Session{}, s.reject(apperrors.ErrRefreshTokenNotFound, "empty refresh token")
	}

	var session models.Session

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		old, err := s.activeToken(ctx, storage, refresh)
		if err != nil {
			return err
		}

		user, err := storage.User().GetUserByID(ctx, old.UserID)
		if err != nil {
			return fmt.Errorf("can't get token owner. Err: %w", err)
		}

		next, err := s.IssueRefresh(ctx, storage, user.ID, ip)
		if err != nil {
			return err
		}

		_, err = storage.Refresh().Revoke(ctx, old.Token, s.now(), ip, &next.Token)
		if err != nil {
			return fmt.Errorf("can't revoke rotated token. Err: %w", err)
		}

		session, err = s.newSession(user, next)
		return err
	})

	if err != nil {
		if errors.Is(err, apperrors.ErrRefreshTokenNotFound) {
			return models.Session{}, s.reject(err, "refresh rejected", "ip", ip)
		}
		return models.Session{}, err
	}

	s.logger.Debug("refresh token rotated", "user_id", session.UserID, "ip", ip)
	s.metrics.SessionEvent(metrics.EventRefreshed)
	return session, nil
}

// Revoke refresh token without replacement, so the chain ends on it
// Returns apperrors.ErrRefreshTokenNotFound if token unknown, revoked or expired
func (s *AuthService) Revoke(ctx context.Context, refresh string, ip string) error {
	if refresh == "" {
		return s.reject(apperrors.ErrRefreshTokenNotFound, "empty refresh token")
	}

	var userID int64

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		token, err := s.activeToken(ctx, storage, refresh)
		if err != nil {
			return err
		}
		userID = token.UserID

		_, err = storage.Refresh().Revoke(ctx, token.Token, s.now(), ip, nil)
		if err != nil {
			return fmt.Errorf("can't revoke token. Err: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, apperrors.ErrRefreshTokenNotFound) {
			return s.reject(err, "revoke rejected", "ip", ip)
		}
		return err
	}

	s.logger.Info("refresh token revoked", "user_id", userID, "ip", ip)
	s.metrics.SessionEvent(metrics.EventRevoked)
	return nil
}

// Resolve active user from access token
func (s *AuthService) UserFromAccess(ctx context.Context, access string) (models.User, error) {
	claims, err := s.tokens.ParseAccess(access)
	if err != nil {
		return models.User{}, fmt.Errorf("invalid access token. Err: %w", err)
	}

	// Token of deactivated (deleted or updated) user must not be accepted
	return s.storage.User().GetUserByID(ctx, claims.UserID)
}

// Issue and persist new refresh token for the user using given storage
// Exported so other services could issue tokens inside their own transactions
func (s *AuthService) IssueRefresh(ctx context.Context, storage repository.Storage, userID int64, ip string) (models.RefreshToken, error) {
	token, err := s.tokens.NewRefresh(userID, ip)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("refresh token could not generated, sorry. Err: %w", err)
	}

	token, err = storage.Refresh().Save(ctx, token)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("can't save refresh token. Err: %w", err)
	}

	return token, nil
}

// Lock the token and check it could be used
func (s *AuthService) activeToken(ctx context.Context, storage repository.Storage, refresh string) (models.RefreshToken, error) {
	token, err := storage.Refresh().GetForUpdate(ctx, refresh)
	if err != nil {
		return models.RefreshToken{}, err
	}

	if !token.IsActive(s.now()) {
		return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
	}

	return token, nil
}

func (s *AuthService) newSession(user models.User, refresh models.RefreshToken) (models.Session, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return models.Session{}, fmt.Errorf("access token could not generated, sorry. Err: %w", err)
	}

	return models.Session{
		UserID: user.ID,
		Email:  user.Email,
		Tokens: models.TokenPair{
			Access:  access,
			Refresh: models.IssuedToken{Value: refresh.Token, ExpiresAt: refresh.ExpiresAt},
		},
	}, nil
}

func (s *AuthService) reject(err error, reason string, args ...any) error {
	s.logger.Debug("session rejected", append([]any{"reason", reason}, args...)...)
	s.metrics.SessionEvent(metrics.EventRejected)
	return err
}

// Emails are compared case insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
