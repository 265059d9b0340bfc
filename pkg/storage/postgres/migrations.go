package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the secondary-store schema in order. Every table
// mirrors a primary-store collection: source_id is the document ID over
// there, doc is the full projected payload, and the remaining typed
// columns exist for the relational read paths that come after cutover.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create teams projection",
			SQL: `
				CREATE TABLE IF NOT EXISTS teams (
					source_id TEXT PRIMARY KEY,
					name TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					created_by TEXT NOT NULL DEFAULT '',
					is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
					doc JSONB NOT NULL,
					synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_teams_created_by ON teams(created_by);
			`,
		},
		{
			Version:     2,
			Description: "Create team_memberships projection",
			SQL: `
				CREATE TABLE IF NOT EXISTS team_memberships (
					source_id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL DEFAULT '',
					team_id TEXT NOT NULL DEFAULT '',
					role_id TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT FALSE,
					doc JSONB NOT NULL,
					synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON team_memberships(user_id);
				CREATE INDEX IF NOT EXISTS idx_memberships_team_id ON team_memberships(team_id);
			`,
		},
		{
			Version:     3,
			Description: "Create roles projection",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					source_id TEXT PRIMARY KEY,
					name TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT FALSE,
					doc JSONB NOT NULL,
					synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     4,
			Description: "Create tasks projection",
			SQL: `
				CREATE TABLE IF NOT EXISTS tasks (
					source_id TEXT PRIMARY KEY,
					title TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					is_private BOOLEAN NOT NULL DEFAULT FALSE,
					is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
					created_by TEXT NOT NULL DEFAULT '',
					doc JSONB NOT NULL,
					synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_tasks_created_by ON tasks(created_by);
			`,
		},
		{
			Version:     5,
			Description: "Create task_assignments projection",
			SQL: `
				CREATE TABLE IF NOT EXISTS task_assignments (
					source_id TEXT PRIMARY KEY,
					task_id TEXT NOT NULL DEFAULT '',
					assignee_kind TEXT NOT NULL DEFAULT '',
					assignee_id TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT FALSE,
					doc JSONB NOT NULL,
					synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_assignments_task_id ON task_assignments(task_id);
			`,
		},
		{
			Version:     6,
			Description: "Create invite_codes projection",
			SQL: `
				CREATE TABLE IF NOT EXISTS invite_codes (
					source_id TEXT PRIMARY KEY,
					code TEXT NOT NULL DEFAULT '',
					kind TEXT NOT NULL DEFAULT '',
					team_id TEXT NOT NULL DEFAULT '',
					is_used BOOLEAN NOT NULL DEFAULT FALSE,
					used_by TEXT NOT NULL DEFAULT '',
					created_by TEXT NOT NULL DEFAULT '',
					doc JSONB NOT NULL,
					synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_invite_codes_code ON invite_codes(code);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS huddle_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM huddle_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO huddle_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}
	}
	return nil
}
