package sections

import (
	"github.com/canopyhq/canopy/pkg/storage"
)

// Migrations returns the section schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "create sections table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sections (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					icon VARCHAR(255) NOT NULL DEFAULT '',
					display_order INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_sections_display_order ON sections(display_order, name);
			`,
		},
		{
			Version:     2,
			Description: "create section_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS section_members (
					id BIGSERIAL PRIMARY KEY,
					section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL,
					role VARCHAR(32) NOT NULL,
					catalog_role_id BIGINT REFERENCES roles(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (section_id, user_id)
				);
				CREATE INDEX IF NOT EXISTS idx_section_members_user_id ON section_members(user_id);
			`,
		},
	}
}
