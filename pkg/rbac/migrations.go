package rbac

import (
	"github.com/canopyhq/canopy/pkg/storage"
)

// Migrations returns the role catalog schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(128) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					permissions JSONB NOT NULL DEFAULT '[]',
					is_built_in BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_roles_slug ON roles(slug);
			`,
		},
		{
			Version:     2,
			Description: "seed built-in section roles",
			SQL: `
				INSERT INTO roles (slug, display_name, description, permissions, is_built_in)
				VALUES
					('section_admin', 'Section Admin', 'Full access to a section and its membership',
						'[{"resource":"section","action":"read"},{"resource":"section","action":"update"},{"resource":"section","action":"delete"},{"resource":"workspace","action":"create"},{"resource":"workspace","action":"read"},{"resource":"workspace","action":"update"},{"resource":"workspace","action":"delete"},{"resource":"record","action":"create"},{"resource":"record","action":"read"},{"resource":"record","action":"update"},{"resource":"record","action":"delete"},{"resource":"member","action":"invite"},{"resource":"member","action":"remove"}]',
						TRUE),
					('section_viewer', 'Section Viewer', 'Read-only access to a section',
						'[{"resource":"section","action":"read"},{"resource":"workspace","action":"read"},{"resource":"record","action":"read"}]',
						TRUE)
				ON CONFLICT (slug) DO NOTHING;
			`,
		},
	}
}
