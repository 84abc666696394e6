package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		avatar_url VARCHAR(500),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		active_tools TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CHECK (status IN ('active', 'archived', 'trashed'))
	)`,

	`CREATE TABLE IF NOT EXISTS project_members (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(20) NOT NULL DEFAULT 'member',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(project_id, user_id),
		CHECK (role IN ('owner', 'member'))
	)`,

	// Exactly one owner row per project
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_project_members_single_owner
		ON project_members(project_id) WHERE role = 'owner'`,

	`CREATE TABLE IF NOT EXISTS tool_access (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		tool_key VARCHAR(64) NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		level VARCHAR(10) NOT NULL,
		granted_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(project_id, tool_key, user_id),
		CHECK (level IN ('view', 'edit'))
	)`,

	`CREATE TABLE IF NOT EXISTS invites (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		tool_key VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		level VARCHAR(10) NOT NULL,
		token VARCHAR(128) NOT NULL UNIQUE,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		invited_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		accepted_by UUID REFERENCES users(id) ON DELETE SET NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CHECK (level IN ('view', 'edit')),
		CHECK (status IN ('pending', 'accepted', 'revoked', 'expired'))
	)`,

	// At most one pending invite per (project, tool, email)
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_invites_single_pending
		ON invites(project_id, tool_key, lower(email)) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS share_tokens (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		tool_key VARCHAR(64) NOT NULL,
		scope_id UUID,
		token VARCHAR(128) NOT NULL UNIQUE,
		include_photos BOOLEAN NOT NULL DEFAULT FALSE,
		include_notes BOOLEAN NOT NULL DEFAULT FALSE,
		include_comments BOOLEAN NOT NULL DEFAULT FALSE,
		include_source_url BOOLEAN NOT NULL DEFAULT FALSE,
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS email_allowlist (
		email VARCHAR(255) PRIMARY KEY,
		source VARCHAR(50) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS tool_documents (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		tool_key VARCHAR(64) NOT NULL,
		scope_id UUID,
		data JSONB NOT NULL DEFAULT '{}',
		version INTEGER NOT NULL DEFAULT 1,
		updated_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	// NULL scope_id means the tool-wide document
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tool_documents_scope
		ON tool_documents(project_id, tool_key, COALESCE(scope_id, '00000000-0000-0000-0000-000000000000'::uuid))`,

	`CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_project_members_user_id ON project_members(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tool_access_project_user ON tool_access(project_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invites_project_tool ON invites(project_id, tool_key)`,
	`CREATE INDEX IF NOT EXISTS idx_invites_email ON invites(lower(email))`,
	`CREATE INDEX IF NOT EXISTS idx_share_tokens_project_tool ON share_tokens(project_id, tool_key)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
