package models

import (
	"time"
)

// Table belongs to a workspace, its owner is the workspace owner
type Table struct {
	ID          int64
	WorkspaceID int64
	Name        string
	CreatedAt   time.Time
	ModifiedAt  time.Time
}
