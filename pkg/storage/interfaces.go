package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when a record does not exist
var ErrNotFound = errors.New("record not found")

// TeamMembershipRepository provides read/write access to team memberships
type TeamMembershipRepository interface {
	// GetByUserID returns all memberships (active and inactive) for a user
	GetByUserID(ctx context.Context, userID string) ([]TeamMembership, error)
	// GetActiveByUserAndTeam returns the user's active membership in a
	// team, or ErrNotFound
	GetActiveByUserAndTeam(ctx context.Context, userID, teamID string) (*TeamMembership, error)
	// ListActiveByTeam returns all active memberships in a team
	ListActiveByTeam(ctx context.Context, teamID string) ([]TeamMembership, error)
	// Create inserts a membership and returns its ID
	Create(ctx context.Context, m *TeamMembership) (string, error)
	// Deactivate soft-removes the user's active membership in a team
	Deactivate(ctx context.Context, userID, teamID, updatedBy string) error
	// UpdateRole changes the role reference on an active membership
	UpdateRole(ctx context.Context, userID, teamID, roleID, updatedBy string) error
}

// RoleRepository resolves role records referenced by memberships
type RoleRepository interface {
	// GetByID returns a role record, or ErrNotFound
	GetByID(ctx context.Context, roleID string) (*RoleRecord, error)
	// GetByName returns an active role record by name, or ErrNotFound
	GetByName(ctx context.Context, name string) (*RoleRecord, error)
}

// TeamRepository provides access to team entities
type TeamRepository interface {
	GetByID(ctx context.Context, teamID string) (*Team, error)
	Create(ctx context.Context, t *Team) (string, error)
	Update(ctx context.Context, t *Team) error
	// SoftDelete marks a team deleted without removing the document
	SoftDelete(ctx context.Context, teamID, deletedBy string) error
}

// TaskRepository provides access to task entities
type TaskRepository interface {
	GetByID(ctx context.Context, taskID string) (*Task, error)
	Create(ctx context.Context, t *Task) (string, error)
	Update(ctx context.Context, t *Task) error
	SoftDelete(ctx context.Context, taskID, deletedBy string) error
}

// TaskAssignmentRepository provides access to task assignments
type TaskAssignmentRepository interface {
	// GetActiveByTaskID returns the task's single active assignment, or
	// ErrNotFound when the task is unassigned
	GetActiveByTaskID(ctx context.Context, taskID string) (*TaskAssignment, error)
	// Reassign atomically deactivates any active assignment for the task
	// and creates the new one. The two steps must not be observable
	// separately by concurrent reassignments.
	Reassign(ctx context.Context, a *TaskAssignment) (string, error)
	// Unassign deactivates the task's active assignment if one exists
	Unassign(ctx context.Context, taskID, updatedBy string) error
}

// InviteCodeStore provides access to single-use invite codes
type InviteCodeStore interface {
	// FindUnused returns the unused code record, or ErrNotFound when the
	// code is unknown or already consumed
	FindUnused(ctx context.Context, code string) (*InviteCode, error)
	// Consume atomically flips is_used false -> true recording the
	// consumer. Returns false when the code was already used or unknown.
	// Must be a single conditional update, never read-then-write.
	Consume(ctx context.Context, code, usedBy string) (bool, error)
	// Insert stores a freshly generated code and returns its ID. Returns
	// ErrDuplicateCode on a code collision so callers can regenerate.
	Insert(ctx context.Context, c *InviteCode) (string, error)
	// ListByCreator returns codes created by a user, newest first
	ListByCreator(ctx context.Context, createdBy string, kind InviteCodeKind) ([]InviteCode, error)
}

// ErrDuplicateCode is returned by InviteCodeStore.Insert on a collision
var ErrDuplicateCode = errors.New("invite code already exists")

// SyncLedger records dual-write outcomes. It lives in the primary store so
// that failures of the secondary store are still observable. Owned
// exclusively by the dual-write shim.
type SyncLedger interface {
	// Record upserts the ledger entry keyed by (entity_type, source_id)
	Record(ctx context.Context, rec *SyncRecord) error
	// ListUnsynced returns PENDING and FAILED entries, oldest first
	ListUnsynced(ctx context.Context, limit int) ([]SyncRecord, error)
	// CountUnsynced returns the number of PENDING and FAILED entries
	CountUnsynced(ctx context.Context) (int64, error)
}

// SecondaryWriter projects primary-store documents into the secondary
// relational store. Consumed only by the dual-write shim.
type SecondaryWriter interface {
	// Upsert writes the projection for one document
	Upsert(ctx context.Context, entity EntityType, primaryID string, payload Payload) error
	// Delete removes the projection for one document
	Delete(ctx context.Context, entity EntityType, primaryID string) error
}
