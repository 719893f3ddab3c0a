package sections

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/canopyhq/canopy/pkg/async"
	"github.com/canopyhq/canopy/pkg/observability"
	"github.com/canopyhq/canopy/pkg/permcache"
	"github.com/canopyhq/canopy/pkg/workspaces"
)

const dispatchTimeout = 5 * time.Second

// PostgresService implements section and membership operations over
// PostgreSQL
type PostgresService struct {
	db         *sql.DB
	workspaces *workspaces.Store
	catalog    RoleCatalog
	dispatcher permcache.Dispatcher
	logger     *observability.Logger
}

// NewPostgresService creates a new PostgresService. dispatcher may be a
// NoopDispatcher when no cache/push backend is configured.
func NewPostgresService(db *sql.DB, workspaceStore *workspaces.Store, catalog RoleCatalog, dispatcher permcache.Dispatcher, logger *observability.Logger) *PostgresService {
	return &PostgresService{
		db:         db,
		workspaces: workspaceStore,
		catalog:    catalog,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

const sectionColumns = "id, name, description, icon, display_order, created_at, updated_at"

func scanSection(row *sql.Row) (*Section, error) {
	section := &Section{}
	err := row.Scan(
		&section.ID, &section.Name, &section.Description, &section.Icon,
		&section.DisplayOrder, &section.CreatedAt, &section.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return section, nil
}

// GetSection retrieves a section by id
func (s *PostgresService) GetSection(ctx context.Context, id int64) (*Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1`, sectionColumns)
	section, err := scanSection(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("section %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return section, nil
}

// ListSections lists every section ordered by display order, then name
func (s *PostgresService) ListSections(ctx context.Context) ([]*Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections ORDER BY display_order, name`, sectionColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()
	return collectSections(rows)
}

// ListAccessibleSections lists the sections a user can see. Global admins
// see everything; everyone else sees the union of sections with a direct
// membership and sections containing a workspace they belong to.
func (s *PostgresService) ListAccessibleSections(ctx context.Context, userID int64, globalRole GlobalRole) ([]*Section, error) {
	if globalRole.IsAdmin() {
		return s.ListSections(ctx)
	}

	query := `
		SELECT DISTINCT s.id, s.name, s.description, s.icon, s.display_order, s.created_at, s.updated_at
		FROM sections s
		LEFT JOIN section_members sm ON sm.section_id = s.id AND sm.user_id = $1
		LEFT JOIN workspaces w ON w.section_id = s.id
		LEFT JOIN workspace_members wm ON wm.workspace_id = w.id AND wm.user_id = $1
		WHERE sm.user_id IS NOT NULL OR wm.user_id IS NOT NULL
		ORDER BY s.display_order, s.name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible sections: %w", err)
	}
	defer rows.Close()
	return collectSections(rows)
}

func collectSections(rows *sql.Rows) ([]*Section, error) {
	var result []*Section
	for rows.Next() {
		section := &Section{}
		if err := rows.Scan(
			&section.ID, &section.Name, &section.Description, &section.Icon,
			&section.DisplayOrder, &section.CreatedAt, &section.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		result = append(result, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sections: %w", err)
	}
	return result, nil
}

// CreateSection creates a section and grants the creator an admin
// membership, all in one transaction. When no display order is supplied
// the section is appended after the current maximum (an empty table
// yields order 0).
func (s *PostgresService) CreateSection(ctx context.Context, req *CreateSectionRequest, creatorUserID int64) (*Section, error) {
	catalogRoleID, err := ResolveCatalogRoleID(ctx, s.catalog, RoleAdmin)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	displayOrder := 0
	if req.DisplayOrder != nil {
		displayOrder = *req.DisplayOrder
	} else {
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(display_order) + 1, 0) FROM sections`,
		).Scan(&displayOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to compute display order: %w", err)
		}
	}

	section := &Section{
		Name:         req.Name,
		Description:  req.Description,
		Icon:         req.Icon,
		DisplayOrder: displayOrder,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sections (name, description, icon, display_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		section.Name, section.Description, section.Icon, section.DisplayOrder,
	).Scan(&section.ID, &section.CreatedAt, &section.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create section: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO section_members (section_id, user_id, role, catalog_role_id)
		VALUES ($1, $2, $3, $4)`,
		section.ID, creatorUserID, RoleAdmin, catalogRoleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to grant creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.dispatchInvalidation(ctx, creatorUserID)
	return section, nil
}

// UpdateSection applies a merge patch and returns the refreshed section
func (s *PostgresService) UpdateSection(ctx context.Context, id int64, updates *UpdateSectionRequest) (*Section, error) {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *updates.Description)
		argPos++
	}
	if updates.Icon != nil {
		setClauses = append(setClauses, fmt.Sprintf("icon = $%d", argPos))
		args = append(args, *updates.Icon)
		argPos++
	}
	if updates.DisplayOrder != nil {
		setClauses = append(setClauses, fmt.Sprintf("display_order = $%d", argPos))
		args = append(args, *updates.DisplayOrder)
		argPos++
	}

	if len(setClauses) == 0 {
		return s.GetSection(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE sections SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update section: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("section %d: %w", id, ErrNotFound)
	}

	return s.GetSection(ctx, id)
}

// RemoveSection deletes a section. Removal is blocked while the section
// still owns workspaces; they must be relocated or deleted first.
func (s *PostgresService) RemoveSection(ctx context.Context, id int64) error {
	count, err := s.workspaces.CountBySection(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("section %d still contains %d workspace(s): %w", id, count, ErrConflict)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove section: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("section %d: %w", id, ErrNotFound)
	}

	return nil
}

// Reorder assigns display order by position in the given id list. The
// whole reordering happens in one transaction so a failure mid-list never
// leaves a mixed ordering.
func (s *PostgresService) Reorder(ctx context.Context, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for position, id := range ids {
		_, err := tx.ExecContext(ctx,
			`UPDATE sections SET display_order = $1, updated_at = NOW() WHERE id = $2`,
			position, id,
		)
		if err != nil {
			return fmt.Errorf("failed to reorder section %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// dispatchInvalidation notifies the invalidation dispatcher without
// blocking the mutation. The request context is detached so cancellation
// at response time does not abort the dispatch.
func (s *PostgresService) dispatchInvalidation(ctx context.Context, userID int64) {
	logger := s.logger.WithField("user_id", userID)
	async.SafeGo(async.Detached(ctx), dispatchTimeout, "permissions invalidation", func(ctx context.Context) error {
		if err := s.dispatcher.NotifyPermissionsChanged(ctx, userID); err != nil {
			logger.WithError(err).Warn("Permission invalidation dispatch failed")
		}
		return nil
	})
}
