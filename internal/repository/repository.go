package repository

import (
	"context"
	"time"

	"github.com/nkiryanov/taledynamic/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create active user
	// If active user with the email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, hashedPassword string) (models.User, error)

	// Get active user by it's id or email
	// If user not found or not active must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Same as GetUserByID but locks the row till the end of transaction
	GetUserByIDForUpdate(ctx context.Context, userID int64) (models.User, error)

	// Active users ordered by id
	ListUsers(ctx context.Context) ([]models.User, error)

	// Whether any active user (except excludeID, pass 0 to check all) has the email
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)

	// Clear active flag. Must return apperrors.ErrUserNotFound if user not active
	Deactivate(ctx context.Context, userID int64) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token in repository
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token if it exists and owned by active user, even it revoked or expired
	// If not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Same as Get but locks token row till the end of transaction
	GetForUpdate(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// All tokens of the user (any state) ordered by creation time
	ListByUser(ctx context.Context, userID int64) ([]models.RefreshToken, error)

	// Mark token revoked. replacedBy is nil when token revoked without rotation
	// Must not overwrite already revoked token: return apperrors.ErrRefreshTokenNotFound instead
	Revoke(ctx context.Context, tokenString string, revokedAt time.Time, revokedByIP string, replacedBy *string) (models.RefreshToken, error)

	// Move all tokens from one user to another, return number of moved tokens
	Reassign(ctx context.Context, fromUserID int64, toUserID int64) (int64, error)
}

type WorkspaceRepo interface {
	Create(ctx context.Context, userID int64, name string) (models.Workspace, error)

	// Get workspace owned by user
	// If not found must return apperrors.ErrWorkspaceNotFound
	Get(ctx context.Context, userID int64, workspaceID int64) (models.Workspace, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Workspace, error)
	Rename(ctx context.Context, userID int64, workspaceID int64, name string) (models.Workspace, error)
	Delete(ctx context.Context, userID int64, workspaceID int64) error

	// Move all workspaces from one user to another, return number of moved workspaces
	Reassign(ctx context.Context, fromUserID int64, toUserID int64) (int64, error)
}

// Tables are reached through their workspace: every method takes the workspace owner
// and must not return tables of deleted or foreign workspaces
type TableRepo interface {
	// Must return apperrors.ErrWorkspaceNotFound if workspace not active or owned by another user
	Create(ctx context.Context, userID int64, workspaceID int64, name string) (models.Table, error)

	// If not found must return apperrors.ErrTableNotFound
	Get(ctx context.Context, userID int64, tableID int64) (models.Table, error)
	ListByWorkspace(ctx context.Context, userID int64, workspaceID int64) ([]models.Table, error)
	Rename(ctx context.Context, userID int64, tableID int64, name string) (models.Table, error)

	// Clear active flag
	Delete(ctx context.Context, userID int64, tableID int64) error
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Workspace() WorkspaceRepo
	Table() TableRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
