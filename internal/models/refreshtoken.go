package models

import (
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	ID          uuid.UUID
	UserID      int64
	Token       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CreatedByIP string

	RevokedAt       *time.Time // nil if token not revoked
	RevokedByIP     *string
	ReplacedByToken *string // set when token was rotated
}

func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// Active token could be used to refresh or revoke
func (t RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
