package workspaces

import (
	"context"
	"database/sql"
	"fmt"
)

// Store provides read access to workspaces and their memberships.
// Workspace lifecycle is owned by another service; sections only consult
// this data for inherited access and containment checks.
type Store struct {
	db *sql.DB
}

// NewStore creates a new workspace store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetWorkspace fetches a workspace by id, returning (nil, nil) when absent
func (s *Store) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	query := `
		SELECT id, section_id, name, description, owner_id, created_at, updated_at
		FROM workspaces
		WHERE id = $1`

	var ws Workspace
	var sectionID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ws.ID,
		&sectionID,
		&ws.Name,
		&ws.Description,
		&ws.OwnerID,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace %d: %w", id, err)
	}
	if sectionID.Valid {
		ws.SectionID = &sectionID.Int64
	}

	return &ws, nil
}

// ListBySection returns all workspaces contained in a section, ordered by name
func (s *Store) ListBySection(ctx context.Context, sectionID int64) ([]Workspace, error) {
	query := `
		SELECT id, section_id, name, description, owner_id, created_at, updated_at
		FROM workspaces
		WHERE section_id = $1
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces for section %d: %w", sectionID, err)
	}
	defer rows.Close()

	var result []Workspace
	for rows.Next() {
		var ws Workspace
		var sid sql.NullInt64
		if err := rows.Scan(&ws.ID, &sid, &ws.Name, &ws.Description, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		if sid.Valid {
			ws.SectionID = &sid.Int64
		}
		result = append(result, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}

	return result, nil
}

// CountBySection returns the number of workspaces contained in a section
func (s *Store) CountBySection(ctx context.Context, sectionID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workspaces WHERE section_id = $1`, sectionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count workspaces for section %d: %w", sectionID, err)
	}
	return count, nil
}

// IsMember reports whether a user belongs to a workspace
func (s *Store) IsMember(ctx context.Context, workspaceID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM workspace_members WHERE workspace_id = $1 AND user_id = $2)`,
		workspaceID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check workspace membership: %w", err)
	}
	return exists, nil
}

// HasMemberInSection reports whether a user belongs to any workspace
// contained in the given section
func (s *Store) HasMemberInSection(ctx context.Context, sectionID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM workspace_members wm
			JOIN workspaces w ON w.id = wm.workspace_id
			WHERE w.section_id = $1 AND wm.user_id = $2
		)`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, sectionID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check workspace membership for section %d: %w", sectionID, err)
	}
	return exists, nil
}

// ListSectionIDsForUser returns the distinct ids of sections containing at
// least one workspace the user belongs to
func (s *Store) ListSectionIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT w.section_id
		FROM workspace_members wm
		JOIN workspaces w ON w.id = wm.workspace_id
		WHERE wm.user_id = $1 AND w.section_id IS NOT NULL`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections for user %d: %w", userID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan section id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate section ids: %w", err)
	}

	return ids, nil
}
