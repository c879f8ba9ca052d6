package apperrors

import (
	"errors"
)

var (
	ErrInvalidRequest = errors.New("invalid request")

	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Returned for unknown, revoked and expired tokens alike
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrTableNotFound     = errors.New("table not found")
)
