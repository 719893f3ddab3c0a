package sections

import (
	"errors"
	"time"
)

// Sentinel errors the HTTP layer maps onto status codes. No-access is not
// an error anywhere in this package; it is a nil result.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Section is a top-level grouping container owning workspaces and its own
// membership list
type Section struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Icon         string    `json:"icon,omitempty"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SectionMember is a stored grant of a role to a user on a section.
// CatalogRoleID references the richer role catalog when a mapping exists;
// the legacy Role column stays authoritative for access decisions.
type SectionMember struct {
	ID            int64       `json:"id"`
	SectionID     int64       `json:"section_id"`
	UserID        int64       `json:"user_id"`
	Role          SectionRole `json:"role"`
	CatalogRoleID *int64      `json:"catalog_role_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// GlobalRole is the caller's platform-wide role, already authenticated by
// the time it reaches this package
type GlobalRole string

// GlobalRoleAdmin short-circuits every section-level check
const GlobalRoleAdmin GlobalRole = "admin"

// IsAdmin reports whether the role denotes a platform-wide administrator
func (g GlobalRole) IsAdmin() bool {
	return g == GlobalRoleAdmin
}

// AccessSource records how an effective role was obtained
type AccessSource string

const (
	SourceGlobal    AccessSource = "global"
	SourceDirect    AccessSource = "direct"
	SourceInherited AccessSource = "inherited"
)

// EffectiveAccess is the computed outcome of access resolution. It is a
// value distinct from SectionMember: synthesized grants (global admin,
// workspace-inherited viewer) never masquerade as stored membership rows.
type EffectiveAccess struct {
	Role   SectionRole  `json:"role"`
	Source AccessSource `json:"source"`
}

// CreateSectionRequest carries the fields for creating a section.
// DisplayOrder nil means "append after the current maximum".
type CreateSectionRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder *int   `json:"display_order,omitempty"`
}

// UpdateSectionRequest is a merge patch; nil fields are left untouched
type UpdateSectionRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	Icon         *string `json:"icon,omitempty"`
	DisplayOrder *int    `json:"display_order,omitempty"`
}
