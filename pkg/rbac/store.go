package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Store provides access to the role catalog
type Store struct {
	db *sql.DB
}

// NewStore creates a new catalog store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetRoleBySlug fetches a catalog role by its slug. A missing slug is not
// an error: callers mapping legacy roles onto the catalog tolerate gaps,
// so this returns (nil, nil) when no row matches.
func (s *Store) GetRoleBySlug(ctx context.Context, slug string) (*Role, error) {
	query := `
		SELECT id, slug, display_name, description, permissions, is_built_in, created_at, updated_at
		FROM roles
		WHERE slug = $1`

	var role Role
	var permissionsJSON []byte
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&role.ID,
		&role.Slug,
		&role.DisplayName,
		&role.Description,
		&permissionsJSON,
		&role.IsBuiltIn,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role %s: %w", slug, err)
	}

	if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions for role %s: %w", slug, err)
	}

	return &role, nil
}

// GetRoleByID fetches a catalog role by id
func (s *Store) GetRoleByID(ctx context.Context, id int64) (*Role, error) {
	query := `
		SELECT id, slug, display_name, description, permissions, is_built_in, created_at, updated_at
		FROM roles
		WHERE id = $1`

	var role Role
	var permissionsJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&role.ID,
		&role.Slug,
		&role.DisplayName,
		&role.Description,
		&permissionsJSON,
		&role.IsBuiltIn,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role %d: %w", id, err)
	}

	if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions for role %d: %w", id, err)
	}

	return &role, nil
}

// ListRoles returns all catalog roles ordered by slug
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT id, slug, display_name, description, permissions, is_built_in, created_at, updated_at
		FROM roles
		ORDER BY slug`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		var permissionsJSON []byte
		if err := rows.Scan(
			&role.ID,
			&role.Slug,
			&role.DisplayName,
			&role.Description,
			&permissionsJSON,
			&role.IsBuiltIn,
			&role.CreatedAt,
			&role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions for role %s: %w", role.Slug, err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}
