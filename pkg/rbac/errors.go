package rbac

import (
	"errors"
	"fmt"
)

// DenialKind distinguishes authorization failures so the boundary layer
// can render distinct messages. None of these are retryable.
type DenialKind string

const (
	KindMembershipRequired DenialKind = "membership_required"
	KindPermissionDenied   DenialKind = "permission_denied"
	KindInsufficientRole   DenialKind = "insufficient_role"
	KindHierarchyViolation DenialKind = "hierarchy_violation"
	KindTaskAccessDenied   DenialKind = "task_access_denied"
)

// DenialError is an authorization failure returned as a value. It is never
// used for transport or repository errors; those are handled fail-closed
// inside the service.
type DenialError struct {
	Kind DenialKind

	// TeamID / TaskID identify the resource where applicable
	TeamID string
	TaskID string

	// Permission is set for KindPermissionDenied
	Permission Permission
	// Role is the actor's resolved role where known
	Role Role
	// Required is set for KindInsufficientRole
	Required Role
	// TargetRole is set for KindHierarchyViolation
	TargetRole Role
	// Action names the attempted operation for messages
	Action string
	// Reason carries extra detail for KindTaskAccessDenied
	Reason string
}

func (e *DenialError) Error() string {
	switch e.Kind {
	case KindMembershipRequired:
		return fmt.Sprintf("membership in team %s is required for %s", e.TeamID, e.Action)
	case KindPermissionDenied:
		return fmt.Sprintf("role %s lacks permission %s in team %s", e.Role, e.Permission, e.TeamID)
	case KindInsufficientRole:
		return fmt.Sprintf("%s requires role %s, have %s", e.Action, e.Required, e.Role)
	case KindHierarchyViolation:
		return fmt.Sprintf("role %s cannot %s a member with role %s", e.Role, e.Action, e.TargetRole)
	case KindTaskAccessDenied:
		return fmt.Sprintf("access to task %s denied: %s", e.TaskID, e.Reason)
	default:
		return "access denied"
	}
}

// membershipRequired builds a MembershipRequired denial
func membershipRequired(teamID, action string) *DenialError {
	return &DenialError{Kind: KindMembershipRequired, TeamID: teamID, Action: action}
}

// permissionDenied builds a PermissionDenied denial
func permissionDenied(teamID string, perm Permission, role Role) *DenialError {
	return &DenialError{Kind: KindPermissionDenied, TeamID: teamID, Permission: perm, Role: role}
}

// insufficientRole builds an InsufficientRole denial
func insufficientRole(required, actual Role, action string) *DenialError {
	return &DenialError{Kind: KindInsufficientRole, Required: required, Role: actual, Action: action}
}

// hierarchyViolation builds a HierarchyViolation denial
func hierarchyViolation(action string, actor, target Role) *DenialError {
	return &DenialError{Kind: KindHierarchyViolation, Action: action, Role: actor, TargetRole: target}
}

// taskAccessDenied builds a TaskAccessDenied denial
func taskAccessDenied(taskID, reason string) *DenialError {
	return &DenialError{Kind: KindTaskAccessDenied, TaskID: taskID, Reason: reason}
}

// IsDenial reports whether err is an authorization denial and returns it
func IsDenial(err error) (*DenialError, bool) {
	var denial *DenialError
	if errors.As(err, &denial) {
		return denial, true
	}
	return nil, false
}
