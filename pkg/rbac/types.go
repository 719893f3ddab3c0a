package rbac

import (
	"time"
)

// Resource represents a resource type in the catalog
type Resource string

const (
	ResourceSection   Resource = "section"
	ResourceWorkspace Resource = "workspace"
	ResourceRecord    Resource = "record"
	ResourceMember    Resource = "member"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionInvite Action = "invite"
	ActionRemove Action = "remove"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Catalog role slugs. The legacy two-tier section roles map onto these
// entries; the catalog may grow finer-grained roles without touching the
// legacy enum.
const (
	SlugSectionAdmin  = "section_admin"
	SlugSectionViewer = "section_viewer"
)

// Role represents a stored catalog role
type Role struct {
	ID          int64        `json:"id"`
	Slug        string       `json:"slug"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	IsBuiltIn   bool         `json:"is_built_in"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BuiltInRoles returns the catalog entries seeded at migration time
func BuiltInRoles() []Role {
	return []Role{
		{
			Slug:        SlugSectionAdmin,
			DisplayName: "Section Admin",
			Description: "Full access to a section and its membership",
			IsBuiltIn:   true,
			Permissions: []Permission{
				{Resource: ResourceSection, Action: ActionRead},
				{Resource: ResourceSection, Action: ActionUpdate},
				{Resource: ResourceSection, Action: ActionDelete},
				{Resource: ResourceWorkspace, Action: ActionCreate},
				{Resource: ResourceWorkspace, Action: ActionRead},
				{Resource: ResourceWorkspace, Action: ActionUpdate},
				{Resource: ResourceWorkspace, Action: ActionDelete},
				{Resource: ResourceRecord, Action: ActionCreate},
				{Resource: ResourceRecord, Action: ActionRead},
				{Resource: ResourceRecord, Action: ActionUpdate},
				{Resource: ResourceRecord, Action: ActionDelete},
				{Resource: ResourceMember, Action: ActionInvite},
				{Resource: ResourceMember, Action: ActionRemove},
			},
		},
		{
			Slug:        SlugSectionViewer,
			DisplayName: "Section Viewer",
			Description: "Read-only access to a section",
			IsBuiltIn:   true,
			Permissions: []Permission{
				{Resource: ResourceSection, Action: ActionRead},
				{Resource: ResourceWorkspace, Action: ActionRead},
				{Resource: ResourceRecord, Action: ActionRead},
			},
		},
	}
}
