package workspaces

import (
	"github.com/canopyhq/canopy/pkg/storage"
)

// Migrations returns the workspace schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "create workspaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id BIGSERIAL PRIMARY KEY,
					section_id BIGINT,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					owner_id BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_workspaces_section_id ON workspaces(section_id);
			`,
		},
		{
			Version:     2,
			Description: "create workspace_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspace_members (
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL,
					role VARCHAR(32) NOT NULL DEFAULT 'member',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (workspace_id, user_id)
				);
				CREATE INDEX IF NOT EXISTS idx_workspace_members_user_id ON workspace_members(user_id);
			`,
		},
	}
}
