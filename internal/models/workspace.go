package models

import (
	"time"
)

type Workspace struct {
	ID         int64
	UserID     int64
	Name       string
	CreatedAt  time.Time
	ModifiedAt time.Time
}
