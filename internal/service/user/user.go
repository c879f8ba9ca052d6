package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/logger"
	"github.com/nkiryanov/taledynamic/internal/metrics"
	"github.com/nkiryanov/taledynamic/internal/models"
	"github.com/nkiryanov/taledynamic/internal/repository"
	"github.com/nkiryanov/taledynamic/internal/service/auth"
)

// Issues refresh tokens inside caller's transaction
type RefreshIssuer interface {
	IssueRefresh(ctx context.Context, storage repository.Storage, userID int64, ip string) (models.RefreshToken, error)
}

type Config struct {
	// auth.DefaultHasher if nil
	Hasher auth.PasswordHasher

	Logger  logger.Logger
	Metrics *metrics.Metrics
}

type UserService struct {
	hasher  auth.PasswordHasher
	issuer  RefreshIssuer
	storage repository.Storage

	logger  logger.Logger
	metrics *metrics.Metrics
}

func NewService(cfg Config, issuer RefreshIssuer, storage repository.Storage) *UserService {
	if cfg.Hasher == nil {
		cfg.Hasher = auth.DefaultHasher
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	return &UserService{
		hasher:  cfg.Hasher,
		issuer:  issuer,
		storage: storage,
		logger:  cfg.Logger.With("service", "user"),
		metrics: cfg.Metrics,
	}
}

// Create active user with one refresh token issued for the ip
// Does not authenticate the user
func (s *UserService) CreateUser(ctx context.Context, email string, password string, ip string) (models.User, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, apperrors.ErrInvalidRequest
	}

	used, err := s.storage.User().EmailExists(ctx, email, 0)
	switch {
	case err != nil:
		return models.User{}, fmt.Errorf("can't check email. Err: %w", err)
	case used:
		return models.User{}, apperrors.ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	var user models.User
	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		user, err = storage.User().CreateUser(ctx, email, hash)
		if err != nil {
			return err
		}

		_, err = s.issuer.IssueRefresh(ctx, storage, user.ID, ip)
		return err
	})
	if err != nil {
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID)
	s.metrics.SessionEvent(metrics.EventUserCreated)
	return user, nil
}

// Credentials update request. Empty Email or NewPassword means no change
type UpdateUser struct {
	ID int64

	// Current password, required
	Password string

	Email       string
	NewPassword string
}

// Replace user record with a new one carrying updated credentials
// Refresh tokens and workspaces of the old record are moved to the new one, old record is deactivated
// Everything happens in one transaction
func (s *UserService) UpdateUser(ctx context.Context, req UpdateUser) (models.User, error) {
	req.Email = auth.NormalizeEmail(req.Email)
	if req.ID <= 0 || req.Password == "" {
		return models.User{}, apperrors.ErrInvalidRequest
	}

	if req.Email != "" {
		used, err := s.storage.User().EmailExists(ctx, req.Email, req.ID)
		switch {
		case err != nil:
			return models.User{}, fmt.Errorf("can't check email. Err: %w", err)
		case used:
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	var newHash string
	if req.NewPassword != "" {
		hash, err := s.hasher.Hash(req.NewPassword)
		if err != nil {
			return models.User{}, fmt.Errorf("can't use this as password, Err: %w", err)
		}
		newHash = hash
	}

	var updated models.User
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		old, err := storage.User().GetUserByIDForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}

		err = s.hasher.Compare(old.HashedPassword, req.Password)
		switch {
		case errors.Is(err, auth.ErrPasswordMismatch):
			return apperrors.ErrUserNotFound
		case err != nil:
			return fmt.Errorf("can't compare password. Err: %w", err)
		}

		email, hash := old.Email, old.HashedPassword
		if req.Email != "" {
			email = req.Email
		}
		if newHash != "" {
			hash = newHash
		}

		// Old record released first: the email may stay the same
		if err := storage.User().Deactivate(ctx, old.ID); err != nil {
			return err
		}

		updated, err = storage.User().CreateUser(ctx, email, hash)
		if err != nil {
			return err
		}

		tokens, err := storage.Refresh().Reassign(ctx, old.ID, updated.ID)
		if err != nil {
			return fmt.Errorf("can't move refresh tokens. Err: %w", err)
		}

		workspaces, err := storage.Workspace().Reassign(ctx, old.ID, updated.ID)
		if err != nil {
			return fmt.Errorf("can't move workspaces. Err: %w", err)
		}

		s.logger.Debug("user records relinked", "old_id", old.ID, "new_id", updated.ID, "tokens", tokens, "workspaces", workspaces)
		return nil
	})
	if err != nil {
		return models.User{}, fmt.Errorf("can't update user. Err: %w", err)
	}

	s.logger.Info("user updated", "old_id", req.ID, "new_id", updated.ID)
	s.metrics.SessionEvent(metrics.EventUserUpdated)
	return updated, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) GetActiveUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.storage.User().GetUserByEmail(ctx, auth.NormalizeEmail(email))
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.storage.User().ListUsers(ctx)
}

func (s *UserService) IsEmailUsed(ctx context.Context, email string) (bool, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return false, apperrors.ErrInvalidRequest
	}
	return s.storage.User().EmailExists(ctx, email, 0)
}

// Logical delete: user is deactivated, its records stay
func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	err := s.storage.User().Deactivate(ctx, userID)
	if err != nil {
		return err
	}

	s.logger.Info("user deleted", "user_id", userID)
	return nil
}
