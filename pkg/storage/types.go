package storage

import (
	"time"
)

// TeamMembership links a user to a team with a role reference.
// A user has at most one active membership per team; role resolution only
// considers active memberships.
type TeamMembership struct {
	ID        string     `json:"id" bson:"_id,omitempty"`
	UserID    string     `json:"user_id" bson:"user_id"`
	TeamID    string     `json:"team_id" bson:"team_id"`
	RoleID    string     `json:"role_id" bson:"role_id"`
	IsActive  bool       `json:"is_active" bson:"is_active"`
	CreatedBy string     `json:"created_by" bson:"created_by"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedBy string     `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// RoleRecord is a stored role definition referenced by memberships
type RoleRecord struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Team is the core team entity
type Team struct {
	ID          string     `json:"id" bson:"_id,omitempty"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	InviteCode  string     `json:"invite_code,omitempty" bson:"invite_code,omitempty"`
	CreatedBy   string     `json:"created_by" bson:"created_by"`
	UpdatedBy   string     `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
	IsDeleted   bool       `json:"is_deleted" bson:"is_deleted"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// Task is the core task entity
type Task struct {
	ID          string     `json:"id" bson:"_id,omitempty"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	IsPrivate   bool       `json:"is_private" bson:"is_private"`
	IsDeleted   bool       `json:"is_deleted" bson:"is_deleted"`
	CreatedBy   string     `json:"created_by" bson:"created_by"`
	UpdatedBy   string     `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// AssigneeKind discriminates the assignee variant of a task assignment
type AssigneeKind string

const (
	AssigneeUser AssigneeKind = "user"
	AssigneeTeam AssigneeKind = "team"
)

// Valid reports whether the kind is a known variant
func (k AssigneeKind) Valid() bool {
	return k == AssigneeUser || k == AssigneeTeam
}

// AssigneeRef is a tagged reference to either a user or a team
type AssigneeRef struct {
	Kind AssigneeKind `json:"kind" bson:"kind"`
	ID   string       `json:"id" bson:"id"`
}

// TaskAssignment links a task to its current assignee. Assignments are
// soft-deactivated on reassignment, never hard-deleted.
type TaskAssignment struct {
	ID            string      `json:"id" bson:"_id,omitempty"`
	TaskID        string      `json:"task_id" bson:"task_id"`
	Assignee      AssigneeRef `json:"assignee" bson:"assignee"`
	IsActive      bool        `json:"is_active" bson:"is_active"`
	IsActionTaken bool        `json:"is_action_taken" bson:"is_action_taken"`
	CreatedBy     string      `json:"created_by" bson:"created_by"`
	CreatedAt     time.Time   `json:"created_at" bson:"created_at"`
	UpdatedBy     string      `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
	UpdatedAt     *time.Time  `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// InviteCodeKind distinguishes team-join codes from team-creation codes
type InviteCodeKind string

const (
	InviteTeamJoin     InviteCodeKind = "team_join"
	InviteTeamCreation InviteCodeKind = "team_creation"
)

// InviteCode is a single-use shared secret. It transitions is_used
// false -> true exactly once and is immutable afterwards.
type InviteCode struct {
	ID          string         `json:"id" bson:"_id,omitempty"`
	Code        string         `json:"code" bson:"code"`
	Kind        InviteCodeKind `json:"kind" bson:"kind"`
	TeamID      string         `json:"team_id,omitempty" bson:"team_id,omitempty"`
	Description string         `json:"description,omitempty" bson:"description,omitempty"`
	CreatedBy   string         `json:"created_by" bson:"created_by"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	IsUsed      bool           `json:"is_used" bson:"is_used"`
	UsedBy      string         `json:"used_by,omitempty" bson:"used_by,omitempty"`
	UsedAt      *time.Time     `json:"used_at,omitempty" bson:"used_at,omitempty"`
}

// EntityType identifies an entity class mirrored by the dual-write shim
type EntityType string

const (
	EntityTeam           EntityType = "teams"
	EntityTeamMembership EntityType = "team_memberships"
	EntityInviteCode     EntityType = "invite_codes"
	EntityTask           EntityType = "tasks"
	EntityTaskAssignment EntityType = "task_assignments"
	EntityRole           EntityType = "roles"
)

// SyncStatus tracks the outcome of a dual-write projection. The mirror
// records SYNCED or FAILED per attempt; PENDING marks rows seeded outside
// the request path (migration backfill) that the reconciler has not
// drained yet.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// SyncOp is the mutation being projected
type SyncOp string

const (
	SyncOpCreate SyncOp = "create"
	SyncOpUpdate SyncOp = "update"
	SyncOpDelete SyncOp = "delete"
)

// Payload is a point-in-time snapshot of the primary-store document
type Payload map[string]interface{}

// SyncRecord is the dual-write shim's bookkeeping for one primary-store
// document. It is an operational ledger, not a business entity; the shim
// owns its lifecycle exclusively.
type SyncRecord struct {
	ID         string     `json:"id" bson:"_id,omitempty"`
	SourceID   string     `json:"source_id" bson:"source_id"`
	EntityType EntityType `json:"entity_type" bson:"entity_type"`
	Op         SyncOp     `json:"op" bson:"op"`
	Payload    Payload    `json:"payload" bson:"payload"`
	SyncStatus SyncStatus `json:"sync_status" bson:"sync_status"`
	SyncError  string     `json:"sync_error,omitempty" bson:"sync_error,omitempty"`
	Attempts   int        `json:"attempts" bson:"attempts"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty" bson:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}
