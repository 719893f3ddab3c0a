package sections

import (
	"context"
	"fmt"

	"github.com/canopyhq/canopy/pkg/rbac"
)

// SectionRole is the legacy two-tier role granted on a section
type SectionRole string

const (
	RoleViewer SectionRole = "viewer"
	RoleAdmin  SectionRole = "admin"
)

// IsValid reports whether the role is a known section role
func (r SectionRole) IsValid() bool {
	return r == RoleViewer || r == RoleAdmin
}

// Rank orders section roles for minimum-role checks. Unknown roles rank
// below viewer so they never satisfy anything.
func Rank(role SectionRole) int {
	switch role {
	case RoleViewer:
		return 0
	case RoleAdmin:
		return 1
	default:
		return -1
	}
}

// Satisfies reports whether a held role meets a required minimum
func Satisfies(actual, required SectionRole) bool {
	return Rank(actual) >= Rank(required)
}

// catalogSlugs maps legacy section roles onto role catalog slugs. The
// catalog rows themselves are seeded data; only the slug translation lives
// in code.
var catalogSlugs = map[SectionRole]string{
	RoleAdmin:  rbac.SlugSectionAdmin,
	RoleViewer: rbac.SlugSectionViewer,
}

// RoleCatalog is the single lookup this package needs from the role
// catalog store
type RoleCatalog interface {
	GetRoleBySlug(ctx context.Context, slug string) (*rbac.Role, error)
}

// ResolveCatalogRoleID maps a legacy role to its catalog role id. A role
// with no catalog entry resolves to nil; legacy role assignment works even
// before the catalog is populated. Only a store failure is an error.
func ResolveCatalogRoleID(ctx context.Context, catalog RoleCatalog, role SectionRole) (*int64, error) {
	slug, ok := catalogSlugs[role]
	if !ok {
		return nil, nil
	}
	catalogRole, err := catalog.GetRoleBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog role for %s: %w", role, err)
	}
	if catalogRole == nil {
		return nil, nil
	}
	return &catalogRole.ID, nil
}
