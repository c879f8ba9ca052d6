package models

import (
	"time"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issues by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Session is what the user gets after successful authentication or refresh
type Session struct {
	UserID int64
	Email  string
	Tokens TokenPair
}
