package sections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const memberColumns = "id, section_id, user_id, role, catalog_role_id, created_at"

// ListMembers retrieves all members of a section
func (s *PostgresService) ListMembers(ctx context.Context, sectionID int64) ([]*SectionMember, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM section_members
		WHERE section_id = $1
		ORDER BY created_at ASC`, memberColumns)

	rows, err := s.db.QueryContext(ctx, query, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*SectionMember
	for rows.Next() {
		member := &SectionMember{}
		var catalogRoleID sql.NullInt64
		if err := rows.Scan(
			&member.ID, &member.SectionID, &member.UserID, &member.Role,
			&catalogRoleID, &member.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if catalogRoleID.Valid {
			member.CatalogRoleID = &catalogRoleID.Int64
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// GetMember retrieves a specific member, returning (nil, nil) when no
// membership row exists. Absence is the resolver's fallback trigger, not
// an error.
func (s *PostgresService) GetMember(ctx context.Context, sectionID, userID int64) (*SectionMember, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM section_members
		WHERE section_id = $1 AND user_id = $2`, memberColumns)

	member := &SectionMember{}
	var catalogRoleID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, sectionID, userID).Scan(
		&member.ID, &member.SectionID, &member.UserID, &member.Role,
		&catalogRoleID, &member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if catalogRoleID.Valid {
		member.CatalogRoleID = &catalogRoleID.Int64
	}

	return member, nil
}

// GrantMember grants a user a role on a section, updating the existing
// row in place when one exists. The write is a single conditional upsert,
// so concurrent grants for the same (section, user) pair never produce
// duplicate rows.
func (s *PostgresService) GrantMember(ctx context.Context, sectionID, userID int64, role SectionRole, catalogRoleID *int64) (*SectionMember, error) {
	if _, err := s.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}

	resolved, err := s.resolveCatalogRef(ctx, role, catalogRoleID)
	if err != nil {
		return nil, err
	}

	member := &SectionMember{
		SectionID:     sectionID,
		UserID:        userID,
		Role:          role,
		CatalogRoleID: resolved,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO section_members (section_id, user_id, role, catalog_role_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (section_id, user_id) DO UPDATE
		SET role = EXCLUDED.role, catalog_role_id = EXCLUDED.catalog_role_id
		RETURNING id, created_at`,
		sectionID, userID, role, resolved,
	).Scan(&member.ID, &member.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to grant member: %w", err)
	}

	s.dispatchInvalidation(ctx, userID)
	return member, nil
}

// UpdateMemberRole changes an existing member's role. Unlike GrantMember
// there is no creation branch: a missing row is not-found.
func (s *PostgresService) UpdateMemberRole(ctx context.Context, sectionID, userID int64, role SectionRole, catalogRoleID *int64) (*SectionMember, error) {
	resolved, err := s.resolveCatalogRef(ctx, role, catalogRoleID)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE section_members
		SET role = $1, catalog_role_id = $2
		WHERE section_id = $3 AND user_id = $4`,
		role, resolved, sectionID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("member (%d, %d): %w", sectionID, userID, ErrNotFound)
	}

	member, err := s.GetMember(ctx, sectionID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		// Deleted between our update and re-read.
		return nil, fmt.Errorf("member (%d, %d): %w", sectionID, userID, ErrNotFound)
	}

	s.dispatchInvalidation(ctx, userID)
	return member, nil
}

// RemoveMember deletes a membership row. Removing an absent member is
// not-found; the second call of a retried removal reports it.
func (s *PostgresService) RemoveMember(ctx context.Context, sectionID, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM section_members WHERE section_id = $1 AND user_id = $2`,
		sectionID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member (%d, %d): %w", sectionID, userID, ErrNotFound)
	}

	s.dispatchInvalidation(ctx, userID)
	return nil
}

// resolveCatalogRef uses the explicit catalog role id when supplied,
// otherwise maps the legacy role through the catalog
func (s *PostgresService) resolveCatalogRef(ctx context.Context, role SectionRole, explicit *int64) (*int64, error) {
	if explicit != nil {
		return explicit, nil
	}
	return ResolveCatalogRoleID(ctx, s.catalog, role)
}

// IsNotFound reports whether an error is a not-found condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether an error is a conflict condition
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
