package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const refreshColumns = `rt.id, rt.user_id, rt.token, rt.created_at, rt.expires_at, rt.created_by_ip, rt.revoked_at, rt.revoked_by_ip, rt.replaced_by_token`

const saveToken = `-- name: Save Refresh Token
INSERT INTO refresh_tokens AS rt (id, user_id, token, created_at, expires_at, created_by_ip, revoked_at, revoked_by_ip, replaced_by_token)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + refreshColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken,
		token.ID, token.UserID, token.Token, token.CreatedAt, token.ExpiresAt, token.CreatedByIP,
		token.RevokedAt, token.RevokedByIP, token.ReplacedByToken,
	)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return saved, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
		}
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const getToken = `-- name: GetToken by string itself, owner must be active
SELECT ` + refreshColumns + `
FROM refresh_tokens rt
JOIN users u ON u.id = rt.user_id
WHERE rt.token = $1 AND u.is_active
`

// Get token
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	return collectRefreshToken(rows)
}

const getTokenForUpdate = getToken + `FOR UPDATE OF rt`

// Get token and lock it till transaction end
// Concurrent rotation of the same token waits here and then sees it revoked
func (r *RefreshTokenRepo) GetForUpdate(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getTokenForUpdate, tokenString)
	return collectRefreshToken(rows)
}

const listUserTokens = `-- name: List user tokens
SELECT ` + refreshColumns + `
FROM refresh_tokens rt
WHERE rt.user_id = $1
ORDER BY rt.created_at, rt.id
`

func (r *RefreshTokenRepo) ListByUser(ctx context.Context, userID int64) ([]models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, listUserTokens, userID)
	tokens, err := pgx.CollectRows(rows, rowToRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tokens, nil
}

const revokeToken = `-- name: Revoke token if it is not revoked yet
UPDATE refresh_tokens AS rt
SET revoked_at = $2, revoked_by_ip = $3, replaced_by_token = $4
WHERE rt.token = $1 AND rt.revoked_at IS NULL
RETURNING ` + refreshColumns

// Mark token revoked
// Should not rewrite already revoked tokens
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenString string, revokedAt time.Time, revokedByIP string, replacedBy *string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, revokeToken, tokenString, revokedAt, revokedByIP, replacedBy)
	return collectRefreshToken(rows)
}

const reassignTokens = `-- name: Move tokens to other user
UPDATE refresh_tokens
SET user_id = $2
WHERE user_id = $1
`

func (r *RefreshTokenRepo) Reassign(ctx context.Context, fromUserID int64, toUserID int64) (int64, error) {
	tag, err := r.DB.Exec(ctx, reassignTokens, fromUserID, toUserID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

func collectRefreshToken(rows pgx.Rows) (models.RefreshToken, error) {
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(
		&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.CreatedByIP,
		&t.RevokedAt, &t.RevokedByIP, &t.ReplacedByToken,
	)
	return t, err
}
