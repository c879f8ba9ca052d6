package workspace

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/logger"
	"github.com/nkiryanov/taledynamic/internal/models"
	"github.com/nkiryanov/taledynamic/internal/repository"
)

const maxNameLength = 100

// Workspaces CRUD, every operation is scoped to the owner
type WorkspaceService struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *WorkspaceService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &WorkspaceService{
		storage: storage,
		logger:  l.With("service", "workspace"),
	}
}

func (s *WorkspaceService) Create(ctx context.Context, userID int64, name string) (models.Workspace, error) {
	name, err := validateName(name)
	if err != nil {
		return models.Workspace{}, err
	}

	w, err := s.storage.Workspace().Create(ctx, userID, name)
	if err != nil {
		return models.Workspace{}, fmt.Errorf("can't create workspace. Err: %w", err)
	}

	s.logger.Debug("workspace created", "user_id", userID, "workspace_id", w.ID)
	return w, nil
}

func (s *WorkspaceService) ListByUser(ctx context.Context, userID int64) ([]models.Workspace, error) {
	return s.storage.Workspace().ListByUser(ctx, userID)
}

func (s *WorkspaceService) Get(ctx context.Context, userID int64, workspaceID int64) (models.Workspace, error) {
	return s.storage.Workspace().Get(ctx, userID, workspaceID)
}

func (s *WorkspaceService) Rename(ctx context.Context, userID int64, workspaceID int64, name string) (models.Workspace, error) {
	name, err := validateName(name)
	if err != nil {
		return models.Workspace{}, err
	}

	return s.storage.Workspace().Rename(ctx, userID, workspaceID, name)
}

func (s *WorkspaceService) Delete(ctx context.Context, userID int64, workspaceID int64) error {
	err := s.storage.Workspace().Delete(ctx, userID, workspaceID)
	if err != nil {
		return err
	}

	s.logger.Debug("workspace deleted", "user_id", userID, "workspace_id", workspaceID)
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", apperrors.ErrInvalidRequest
	}
	return name, nil
}
