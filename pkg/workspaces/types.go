package workspaces

import (
	"time"
)

// Workspace represents a collaborative workspace. A workspace may live
// inside a section or float unattached (SectionID nil).
type Workspace struct {
	ID          int64     `json:"id"`
	SectionID   *int64    `json:"section_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Member represents a user's membership in a workspace
type Member struct {
	WorkspaceID int64     `json:"workspace_id"`
	UserID      int64     `json:"user_id"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}
