package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/storage"
)

// Service evaluates a user's effective access. It owns no data; it is a
// read-side evaluator over the membership, role, task and assignment
// repositories.
type Service struct {
	memberships storage.TeamMembershipRepository
	roles       storage.RoleRepository
	tasks       storage.TaskRepository
	assignments storage.TaskAssignmentRepository

	logger  *observability.Logger
	metrics *observability.Metrics

	// roleCache memoizes resolved roles per (user, team) for a short TTL.
	// Only clean resolutions are cached; repository failures never are.
	roleCache *expirable.LRU[string, Role]
}

// Option configures a Service
type Option func(*Service)

// WithMetrics attaches Prometheus metrics to the service
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRoleCache sets the role-resolution cache size and TTL
func WithRoleCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		s.roleCache = expirable.NewLRU[string, Role](size, nil, ttl)
	}
}

// NewService creates a permission service
func NewService(
	memberships storage.TeamMembershipRepository,
	roles storage.RoleRepository,
	tasks storage.TaskRepository,
	assignments storage.TaskAssignmentRepository,
	logger *observability.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		memberships: memberships,
		roles:       roles,
		tasks:       tasks,
		assignments: assignments,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveRole returns the user's role in a team, or RoleNone when the user
// holds no active membership there. Role names other than "owner"/"admin"
// resolve to Member; see ParseRole.
func (s *Service) ResolveRole(ctx context.Context, userID, teamID string) (Role, error) {
	cacheKey := userID + "|" + teamID
	if s.roleCache != nil {
		if role, ok := s.roleCache.Get(cacheKey); ok {
			if s.metrics != nil {
				s.metrics.RoleCacheHitsTotal.Inc()
			}
			return role, nil
		}
		if s.metrics != nil {
			s.metrics.RoleCacheMissesTotal.Inc()
		}
	}

	memberships, err := s.memberships.GetByUserID(ctx, userID)
	if err != nil {
		return RoleNone, fmt.Errorf("list memberships for user %s: %w", userID, err)
	}

	role := RoleNone
	for _, m := range memberships {
		if !m.IsActive || m.TeamID != teamID {
			continue
		}
		record, err := s.roles.GetByID(ctx, m.RoleID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Dangling role reference resolves to no role rather
				// than failing the request
				continue
			}
			return RoleNone, fmt.Errorf("resolve role %s: %w", m.RoleID, err)
		}
		if !record.IsActive {
			continue
		}
		role = ParseRole(record.Name)
		break
	}

	if s.roleCache != nil {
		s.roleCache.Add(cacheKey, role)
	}
	return role, nil
}

// InvalidateUser drops cached role resolutions for a user in a team.
// Called by the team service after membership mutations.
func (s *Service) InvalidateUser(userID, teamID string) {
	if s.roleCache != nil {
		s.roleCache.Remove(userID + "|" + teamID)
	}
}

// resolveRoleClosed resolves a role treating repository failures as no
// access. Fail-closed: an error is logged and reported as RoleNone plus
// false, never as a grant.
func (s *Service) resolveRoleClosed(ctx context.Context, userID, teamID string) (Role, bool) {
	role, err := s.ResolveRole(ctx, userID, teamID)
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id": userID,
			"team_id": teamID,
		}).Warn("role resolution failed, denying access")
		return RoleNone, false
	}
	return role, true
}

func (s *Service) observeCheck(check string, allowed bool) {
	if s.metrics == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	s.metrics.PermissionChecksTotal.WithLabelValues(check, outcome).Inc()
}

// RequireMembership fails with MembershipRequired unless the user holds an
// active role in the team
func (s *Service) RequireMembership(ctx context.Context, userID, teamID, action string) error {
	role, ok := s.resolveRoleClosed(ctx, userID, teamID)
	allowed := ok && role != RoleNone
	s.observeCheck("membership", allowed)
	if !allowed {
		return membershipRequired(teamID, action)
	}
	return nil
}

// RequirePermission fails with MembershipRequired when the user has no role
// in the team, or PermissionDenied when their role lacks the permission
func (s *Service) RequirePermission(ctx context.Context, userID, teamID string, perm Permission) error {
	role, ok := s.resolveRoleClosed(ctx, userID, teamID)
	if !ok || role == RoleNone {
		s.observeCheck("permission", false)
		return membershipRequired(teamID, string(perm))
	}
	if !HasPermission(role, perm) {
		s.observeCheck("permission", false)
		return permissionDenied(teamID, perm, role)
	}
	s.observeCheck("permission", true)
	return nil
}

// RequireOwner fails with InsufficientRole unless the user owns the team
func (s *Service) RequireOwner(ctx context.Context, userID, teamID, action string) error {
	return s.requireRank(ctx, userID, teamID, RoleOwner, action)
}

// RequireAdminOrOwner fails with InsufficientRole unless the user is an
// admin or the owner of the team
func (s *Service) RequireAdminOrOwner(ctx context.Context, userID, teamID, action string) error {
	return s.requireRank(ctx, userID, teamID, RoleAdmin, action)
}

func (s *Service) requireRank(ctx context.Context, userID, teamID string, required Role, action string) error {
	role, ok := s.resolveRoleClosed(ctx, userID, teamID)
	if !ok || role == RoleNone {
		s.observeCheck("rank", false)
		return membershipRequired(teamID, action)
	}
	if role < required {
		s.observeCheck("rank", false)
		return insufficientRole(required, role, action)
	}
	s.observeCheck("rank", true)
	return nil
}

// CanManageMember reports whether the actor may manage the target within
// the team. Both must hold active roles; the comparison follows the strict
// role order.
func (s *Service) CanManageMember(ctx context.Context, actorID, teamID, targetID string) (bool, error) {
	actorRole, err := s.ResolveRole(ctx, actorID, teamID)
	if err != nil {
		return false, err
	}
	targetRole, err := s.ResolveRole(ctx, targetID, teamID)
	if err != nil {
		return false, err
	}
	if actorRole == RoleNone || targetRole == RoleNone {
		return false, nil
	}
	return CanManage(actorRole, targetRole), nil
}

// RequireManageMember fails with MembershipRequired when either party has
// no role in the team, or HierarchyViolation when the role order forbids
// the action
func (s *Service) RequireManageMember(ctx context.Context, actorID, teamID, targetID, action string) error {
	actorRole, actorOK := s.resolveRoleClosed(ctx, actorID, teamID)
	if !actorOK || actorRole == RoleNone {
		s.observeCheck("manage_member", false)
		return membershipRequired(teamID, action)
	}
	targetRole, targetOK := s.resolveRoleClosed(ctx, targetID, teamID)
	if !targetOK || targetRole == RoleNone {
		s.observeCheck("manage_member", false)
		return membershipRequired(teamID, action)
	}
	if !CanManage(actorRole, targetRole) {
		s.observeCheck("manage_member", false)
		return hierarchyViolation(action, actorRole, targetRole)
	}
	s.observeCheck("manage_member", true)
	return nil
}

// CanViewTask reports whether the user may view the task. Fail-closed:
// any repository error denies.
func (s *Service) CanViewTask(ctx context.Context, userID, taskID string) bool {
	allowed := s.taskAccess(ctx, userID, taskID) == nil
	s.observeCheck("task_view", allowed)
	return allowed
}

// CanModifyTask reports whether the user may modify the task. The
// derivation matches CanViewTask: the creator always may, and otherwise
// access flows through the active assignee relationship.
func (s *Service) CanModifyTask(ctx context.Context, userID, taskID string) bool {
	allowed := s.taskAccess(ctx, userID, taskID) == nil
	s.observeCheck("task_modify", allowed)
	return allowed
}

// RequireTaskAccess fails with TaskAccessDenied unless the user may view
// the task
func (s *Service) RequireTaskAccess(ctx context.Context, userID, taskID string) error {
	err := s.taskAccess(ctx, userID, taskID)
	s.observeCheck("task_view", err == nil)
	return err
}

// RequireTaskModify fails with TaskAccessDenied unless the user may modify
// the task
func (s *Service) RequireTaskModify(ctx context.Context, userID, taskID string) error {
	err := s.taskAccess(ctx, userID, taskID)
	s.observeCheck("task_modify", err == nil)
	return err
}

// taskAccess decides task-level access:
//
//   - the creator always has access
//   - a private task is accessible only to its creator; assignee
//     relationships are not consulted
//   - otherwise access derives from the active assignee relationship,
//     see assigneeAccess
func (s *Service) taskAccess(ctx context.Context, userID, taskID string) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WithError(err).WithField("task_id", taskID).
				Warn("task lookup failed, denying access")
		}
		return taskAccessDenied(taskID, "task not found")
	}
	if task.IsDeleted {
		return taskAccessDenied(taskID, "task not found")
	}

	if task.CreatedBy == userID {
		return nil
	}

	if task.IsPrivate {
		return taskAccessDenied(taskID, "task is private")
	}

	return s.assigneeAccess(ctx, userID, taskID)
}

// assigneeAccess derives access from the task's active assignee
// relationship. A task with no active assignee is open to anyone; this is
// documented policy (unassigned is not private-by-omission), preserve it.
func (s *Service) assigneeAccess(ctx context.Context, userID, taskID string) error {
	assignment, err := s.assignments.GetActiveByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		s.logger.WithError(err).WithField("task_id", taskID).
			Warn("assignment lookup failed, denying access")
		return taskAccessDenied(taskID, "assignment lookup failed")
	}

	switch assignment.Assignee.Kind {
	case storage.AssigneeUser:
		if assignment.Assignee.ID == userID {
			return nil
		}
		return taskAccessDenied(taskID, "task is assigned to another user")
	case storage.AssigneeTeam:
		role, ok := s.resolveRoleClosed(ctx, userID, assignment.Assignee.ID)
		if ok && role != RoleNone {
			return nil
		}
		return taskAccessDenied(taskID, "task is assigned to a team you are not in")
	default:
		// Unknown assignee kind denies rather than falling open
		return taskAccessDenied(taskID, "unrecognized assignee relation")
	}
}

// AccessibleTeams returns the IDs of all teams where the user holds an
// active membership
func (s *Service) AccessibleTeams(ctx context.Context, userID string) (map[string]struct{}, error) {
	memberships, err := s.memberships.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships for user %s: %w", userID, err)
	}

	teams := make(map[string]struct{})
	for _, m := range memberships {
		if m.IsActive {
			teams[m.TeamID] = struct{}{}
		}
	}
	return teams, nil
}
