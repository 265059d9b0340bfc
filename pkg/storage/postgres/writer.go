package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/huddlehq/huddle/pkg/storage"
)

// Writer projects primary-store documents into the relational tables. It
// implements storage.SecondaryWriter.
type Writer struct {
	db *sql.DB
}

// NewWriter creates a secondary-store writer
func NewWriter(db *DB) *Writer {
	return &Writer{db: db.DB}
}

// Upsert writes the projection for one document. The statement is a
// single INSERT ... ON CONFLICT so replays and retries are idempotent.
func (w *Writer) Upsert(ctx context.Context, entity storage.EntityType, primaryID string, payload storage.Payload) error {
	doc, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", entity, err)
	}

	var query string
	var args []interface{}

	switch entity {
	case storage.EntityTeam:
		query = `
			INSERT INTO teams (source_id, name, description, created_by, is_deleted, doc, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (source_id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				created_by = EXCLUDED.created_by,
				is_deleted = EXCLUDED.is_deleted,
				doc = EXCLUDED.doc,
				synced_at = NOW()`
		args = []interface{}{
			primaryID,
			payloadString(payload, "name"),
			payloadString(payload, "description"),
			payloadString(payload, "created_by"),
			payloadBool(payload, "is_deleted"),
			doc,
		}
	case storage.EntityTeamMembership:
		query = `
			INSERT INTO team_memberships (source_id, user_id, team_id, role_id, is_active, doc, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (source_id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				team_id = EXCLUDED.team_id,
				role_id = EXCLUDED.role_id,
				is_active = EXCLUDED.is_active,
				doc = EXCLUDED.doc,
				synced_at = NOW()`
		args = []interface{}{
			primaryID,
			payloadString(payload, "user_id"),
			payloadString(payload, "team_id"),
			payloadString(payload, "role_id"),
			payloadBool(payload, "is_active"),
			doc,
		}
	case storage.EntityRole:
		query = `
			INSERT INTO roles (source_id, name, is_active, doc, synced_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (source_id) DO UPDATE SET
				name = EXCLUDED.name,
				is_active = EXCLUDED.is_active,
				doc = EXCLUDED.doc,
				synced_at = NOW()`
		args = []interface{}{
			primaryID,
			payloadString(payload, "name"),
			payloadBool(payload, "is_active"),
			doc,
		}
	case storage.EntityTask:
		query = `
			INSERT INTO tasks (source_id, title, description, is_private, is_deleted, created_by, doc, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			ON CONFLICT (source_id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				is_private = EXCLUDED.is_private,
				is_deleted = EXCLUDED.is_deleted,
				created_by = EXCLUDED.created_by,
				doc = EXCLUDED.doc,
				synced_at = NOW()`
		args = []interface{}{
			primaryID,
			payloadString(payload, "title"),
			payloadString(payload, "description"),
			payloadBool(payload, "is_private"),
			payloadBool(payload, "is_deleted"),
			payloadString(payload, "created_by"),
			doc,
		}
	case storage.EntityTaskAssignment:
		assignee, _ := payload["assignee"].(map[string]interface{})
		query = `
			INSERT INTO task_assignments (source_id, task_id, assignee_kind, assignee_id, is_active, doc, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (source_id) DO UPDATE SET
				task_id = EXCLUDED.task_id,
				assignee_kind = EXCLUDED.assignee_kind,
				assignee_id = EXCLUDED.assignee_id,
				is_active = EXCLUDED.is_active,
				doc = EXCLUDED.doc,
				synced_at = NOW()`
		args = []interface{}{
			primaryID,
			payloadString(payload, "task_id"),
			payloadString(assignee, "kind"),
			payloadString(assignee, "id"),
			payloadBool(payload, "is_active"),
			doc,
		}
	case storage.EntityInviteCode:
		query = `
			INSERT INTO invite_codes (source_id, code, kind, team_id, is_used, used_by, created_by, doc, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (source_id) DO UPDATE SET
				code = EXCLUDED.code,
				kind = EXCLUDED.kind,
				team_id = EXCLUDED.team_id,
				is_used = EXCLUDED.is_used,
				used_by = EXCLUDED.used_by,
				created_by = EXCLUDED.created_by,
				doc = EXCLUDED.doc,
				synced_at = NOW()`
		args = []interface{}{
			primaryID,
			payloadString(payload, "code"),
			payloadString(payload, "kind"),
			payloadString(payload, "team_id"),
			payloadBool(payload, "is_used"),
			payloadString(payload, "used_by"),
			payloadString(payload, "created_by"),
			doc,
		}
	default:
		return fmt.Errorf("unknown entity type %q", entity)
	}

	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s %s: %w", entity, primaryID, err)
	}
	return nil
}

// Delete removes the projection for one document. Deleting a row that was
// never projected is not an error.
func (w *Writer) Delete(ctx context.Context, entity storage.EntityType, primaryID string) error {
	table, ok := entityTables[entity]
	if !ok {
		return fmt.Errorf("unknown entity type %q", entity)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE source_id = $1", table)
	if _, err := w.db.ExecContext(ctx, query, primaryID); err != nil {
		return fmt.Errorf("delete %s %s: %w", entity, primaryID, err)
	}
	return nil
}

// entityTables maps entity types to their projection tables. The entity
// names match the table names today; the indirection keeps that a
// coincidence rather than a contract.
var entityTables = map[storage.EntityType]string{
	storage.EntityTeam:           "teams",
	storage.EntityTeamMembership: "team_memberships",
	storage.EntityRole:           "roles",
	storage.EntityTask:           "tasks",
	storage.EntityTaskAssignment: "task_assignments",
	storage.EntityInviteCode:     "invite_codes",
}

func payloadString(p map[string]interface{}, key string) string {
	if p == nil {
		return ""
	}
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadBool(p map[string]interface{}, key string) bool {
	if p == nil {
		return false
	}
	if v, ok := p[key].(bool); ok {
		return v
	}
	return false
}
