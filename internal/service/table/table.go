package table

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

// Tables CRUD
// Access is granted through the workspace: a user sees tables of own active workspaces only
type TableService struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *TableService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &TableService{
		storage: storage,
		logger:  l.With("service", "table"),
	}
}

// Returns apperrors.ErrWorkspaceNotFound if workspace is not the user's
func (s *TableService) Create(ctx context.Context, userID int64, workspaceID int64, name string) (models.Table, error) {
	name, err := validateName(name)
	if err != nil {
		return models.Table{}, err
	}

	t, err := s.storage.Table().Create(ctx, userID, workspaceID, name)
	if err != nil {
		return models.Table{}, fmt.Errorf("can't create table. Err: %w", err)
	}

	s.logger.Debug("table created", "user_id", userID, "workspace_id", workspaceID, "table_id", t.ID)
	return t, nil
}

// Returns apperrors.ErrWorkspaceNotFound if workspace is not the user's
func (s *TableService) ListByWorkspace(ctx context.Context, userID int64, workspaceID int64) ([]models.Table, error) {
	if _, err := s.storage.Workspace().Get(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	return s.storage.Table().ListByWorkspace(ctx, userID, workspaceID)
}

func (s *TableService) Get(ctx context.Context, userID int64, tableID int64) (models.Table, error) {
	return s.storage.Table().Get(ctx, userID, tableID)
}

func (s *TableService) Rename(ctx context.Context, userID int64, tableID int64, name string) (models.Table, error) {
	name, err := validateName(name)
	if err != nil {
		return models.Table{}, err
	}

	return s.storage.Table().Rename(ctx, userID, tableID, name)
}

func (s *TableService) Delete(ctx context.Context, userID int64, tableID int64) error {
	err := s.storage.Table().Delete(ctx, userID, tableID)
	if err != nil {
		return err
	}

	s.logger.Debug("table deleted", "user_id", userID, "table_id", tableID)
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", apperrors.ErrInvalidRequest
	}
	return name, nil
}
