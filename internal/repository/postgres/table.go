package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/models"
)

type TableRepo struct {
	DB DBTX
}

const tableColumns = `t.id, t.workspace_id, t.name, t.created_at, t.modified_at`

// Active tables of active workspaces owned by $1
const ownedTables = `
	tables t
	JOIN workspaces w ON w.id = t.workspace_id AND w.is_active AND w.user_id = $1
	`

func (r *TableRepo) Create(ctx context.Context, userID int64, workspaceID int64, name string) (models.Table, error) {
	const createTable = `
	INSERT INTO tables AS t (workspace_id, name)
	SELECT w.id, $3::text FROM workspaces w
	WHERE w.id = $2 AND w.user_id = $1 AND w.is_active
	RETURNING ` + tableColumns

	rows, _ := r.DB.Query(ctx, createTable, userID, workspaceID, name)
	table, err := pgx.CollectOneRow(rows, rowToTable)

	switch {
	case err == nil:
		return table, nil
	case errors.Is(err, pgx.ErrNoRows):
		return table, apperrors.ErrWorkspaceNotFound
	default:
		return table, fmt.Errorf("db error: %w", err)
	}
}

func (r *TableRepo) Get(ctx context.Context, userID int64, tableID int64) (models.Table, error) {
	const getTable = `
	SELECT ` + tableColumns + ` FROM ` + ownedTables + `
	WHERE t.id = $2 AND t.is_active
	`

	rows, _ := r.DB.Query(ctx, getTable, userID, tableID)
	return collectTable(rows)
}

func (r *TableRepo) ListByWorkspace(ctx context.Context, userID int64, workspaceID int64) ([]models.Table, error) {
	const listTables = `
	SELECT ` + tableColumns + ` FROM ` + ownedTables + `
	WHERE t.workspace_id = $2 AND t.is_active
	ORDER BY t.id
	`

	rows, _ := r.DB.Query(ctx, listTables, userID, workspaceID)
	tables, err := pgx.CollectRows(rows, rowToTable)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tables, nil
}

func (r *TableRepo) Rename(ctx context.Context, userID int64, tableID int64, name string) (models.Table, error) {
	const renameTable = `
	UPDATE tables t
	SET name = $3, modified_at = now()
	FROM workspaces w
	WHERE t.id = $2 AND t.is_active
		AND w.id = t.workspace_id AND w.is_active AND w.user_id = $1
	RETURNING ` + tableColumns

	rows, _ := r.DB.Query(ctx, renameTable, userID, tableID, name)
	return collectTable(rows)
}

func (r *TableRepo) Delete(ctx context.Context, userID int64, tableID int64) error {
	const deleteTable = `
	UPDATE tables t
	SET is_active = FALSE, modified_at = now()
	FROM workspaces w
	WHERE t.id = $2 AND t.is_active
		AND w.id = t.workspace_id AND w.is_active AND w.user_id = $1
	`

	tag, err := r.DB.Exec(ctx, deleteTable, userID, tableID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrTableNotFound
	default:
		return nil
	}
}

func collectTable(rows pgx.Rows) (models.Table, error) {
	table, err := pgx.CollectOneRow(rows, rowToTable)

	switch {
	case err == nil:
		return table, nil
	case errors.Is(err, pgx.ErrNoRows):
		return table, apperrors.ErrTableNotFound
	default:
		return table, fmt.Errorf("db error: %w", err)
	}
}

func rowToTable(row pgx.CollectableRow) (models.Table, error) {
	var t models.Table
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.CreatedAt, &t.ModifiedAt)
	return t, err
}
