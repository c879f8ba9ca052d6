package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/models"
)

type WorkspaceRepo struct {
	DB DBTX
}

const workspaceColumns = `id, user_id, name, created_at, modified_at`

func (r *WorkspaceRepo) Create(ctx context.Context, userID int64, name string) (models.Workspace, error) {
	const createWorkspace = `
	INSERT INTO workspaces (user_id, name)
	VALUES ($1, $2)
	RETURNING ` + workspaceColumns

	rows, _ := r.DB.Query(ctx, createWorkspace, userID, name)
	workspace, err := pgx.CollectOneRow(rows, rowToWorkspace)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return workspace, apperrors.ErrUserNotFound
		}
		return workspace, fmt.Errorf("db error: %w", err)
	}

	return workspace, nil
}

func (r *WorkspaceRepo) Get(ctx context.Context, userID int64, workspaceID int64) (models.Workspace, error) {
	const getWorkspace = `
	SELECT ` + workspaceColumns + ` FROM workspaces
	WHERE id = $1 AND user_id = $2 AND is_active
	`

	rows, _ := r.DB.Query(ctx, getWorkspace, workspaceID, userID)
	return collectWorkspace(rows)
}

func (r *WorkspaceRepo) ListByUser(ctx context.Context, userID int64) ([]models.Workspace, error) {
	const listWorkspaces = `
	SELECT ` + workspaceColumns + ` FROM workspaces
	WHERE user_id = $1 AND is_active
	ORDER BY id
	`

	rows, _ := r.DB.Query(ctx, listWorkspaces, userID)
	workspaces, err := pgx.CollectRows(rows, rowToWorkspace)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return workspaces, nil
}

func (r *WorkspaceRepo) Rename(ctx context.Context, userID int64, workspaceID int64, name string) (models.Workspace, error) {
	const renameWorkspace = `
	UPDATE workspaces
	SET name = $3, modified_at = now()
	WHERE id = $1 AND user_id = $2 AND is_active
	RETURNING ` + workspaceColumns

	rows, _ := r.DB.Query(ctx, renameWorkspace, workspaceID, userID, name)
	return collectWorkspace(rows)
}

// Logical delete: workspace and its tables stay in db but are never returned
func (r *WorkspaceRepo) Delete(ctx context.Context, userID int64, workspaceID int64) error {
	const deleteWorkspace = `
	UPDATE workspaces
	SET is_active = FALSE, modified_at = now()
	WHERE id = $1 AND user_id = $2 AND is_active
	`

	tag, err := r.DB.Exec(ctx, deleteWorkspace, workspaceID, userID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrWorkspaceNotFound
	default:
		return nil
	}
}

func (r *WorkspaceRepo) Reassign(ctx context.Context, fromUserID int64, toUserID int64) (int64, error) {
	const reassignWorkspaces = `
	UPDATE workspaces
	SET user_id = $2
	WHERE user_id = $1 AND is_active
	`

	tag, err := r.DB.Exec(ctx, reassignWorkspaces, fromUserID, toUserID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

func collectWorkspace(rows pgx.Rows) (models.Workspace, error) {
	workspace, err := pgx.CollectOneRow(rows, rowToWorkspace)

	switch {
	case err == nil:
		return workspace, nil
	case errors.Is(err, pgx.ErrNoRows):
		return workspace, apperrors.ErrWorkspaceNotFound
	default:
		return workspace, fmt.Errorf("db error: %w", err)
	}
}

func rowToWorkspace(row pgx.CollectableRow) (models.Workspace, error) {
	var w models.Workspace
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.CreatedAt, &w.ModifiedAt)
	return w, err
}
