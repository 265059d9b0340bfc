package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/huddlehq/huddle/pkg/dualwrite"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/rbac"
	"github.com/huddlehq/huddle/pkg/storage"
)

// maxCodeAttempts bounds regeneration when a generated code collides
// with an existing one
const maxCodeAttempts = 5

// Service implements team lifecycle and membership operations
type Service struct {
	teams       storage.TeamRepository
	memberships storage.TeamMembershipRepository
	roles       storage.RoleRepository
	invites     storage.InviteCodeStore
	perms       *rbac.Service
	mirror      *dualwrite.Mirror
	logger      *observability.Logger
}

// NewService creates a team service
func NewService(
	teams storage.TeamRepository,
	memberships storage.TeamMembershipRepository,
	roles storage.RoleRepository,
	invites storage.InviteCodeStore,
	perms *rbac.Service,
	mirror *dualwrite.Mirror,
	logger *observability.Logger,
) *Service {
	return &Service{
		teams:       teams,
		memberships: memberships,
		roles:       roles,
		invites:     invites,
		perms:       perms,
		mirror:      mirror,
		logger:      logger,
	}
}

// CreateTeam consumes a team-creation invite code, creates the team and
// makes the creator its owner. A fresh join code is generated and
// attached to the team.
func (s *Service) CreateTeam(ctx context.Context, creatorID, name, description, creationCode string) (*storage.Team, error) {
	invite, err := s.invites.FindUnused(ctx, creationCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInviteInvalid
		}
		return nil, fmt.Errorf("look up creation code: %w", err)
	}
	if invite.Kind != storage.InviteTeamCreation {
		return nil, ErrInviteInvalid
	}

	// Consumption is the race arbiter: of concurrent creates with the
	// same code, exactly one passes this point
	consumed, err := s.invites.Consume(ctx, creationCode, creatorID)
	if err != nil {
		return nil, fmt.Errorf("consume creation code: %w", err)
	}
	if !consumed {
		return nil, ErrInviteInvalid
	}
	invite.IsUsed = true
	invite.UsedBy = creatorID
	s.mirror.UpdateDocument(ctx, storage.EntityInviteCode, invite.ID, dualwrite.Snapshot(invite))

	// The team must exist before its join code is stored: JoinTeam
	// rejects codes without a team_id, so the code record has to carry
	// the id from the start
	team := &storage.Team{
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
	}
	teamID, err := s.teams.Create(ctx, team)
	if err != nil {
		s.logger.WithError(err).WithField("code", creationCode).Warn("creation code consumed but team create failed")
		return nil, fmt.Errorf("create team: %w", err)
	}

	joinInvite, err := s.insertJoinCode(ctx, creatorID, teamID, "")
	if err != nil {
		s.logger.WithError(err).WithField("team_id", teamID).Warn("team created without a join code")
		return nil, err
	}
	team.InviteCode = joinInvite.Code
	if err := s.teams.Update(ctx, team); err != nil {
		s.logger.WithError(err).WithField("team_id", teamID).Warn("failed to attach join code to team")
		return nil, fmt.Errorf("attach join code: %w", err)
	}
	s.mirror.CreateDocument(ctx, storage.EntityTeam, teamID, dualwrite.Snapshot(team))

	if err := s.addMembership(ctx, creatorID, teamID, "owner", creatorID); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"team_id": teamID,
			"user_id": creatorID,
		}).Warn("team created without an owner membership")
		return nil, err
	}
	return team, nil
}

// JoinTeam consumes a team-join invite code and adds the user as a
// member
func (s *Service) JoinTeam(ctx context.Context, userID, code string) (*storage.TeamMembership, error) {
	invite, err := s.invites.FindUnused(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInviteInvalid
		}
		return nil, fmt.Errorf("look up join code: %w", err)
	}
	if invite.Kind != storage.InviteTeamJoin || invite.TeamID == "" {
		return nil, ErrInviteInvalid
	}

	if _, err := s.memberships.GetActiveByUserAndTeam(ctx, userID, invite.TeamID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check membership: %w", err)
	}

	consumed, err := s.invites.Consume(ctx, code, userID)
	if err != nil {
		return nil, fmt.Errorf("consume join code: %w", err)
	}
	if !consumed {
		return nil, ErrInviteInvalid
	}
	invite.IsUsed = true
	invite.UsedBy = userID
	s.mirror.UpdateDocument(ctx, storage.EntityInviteCode, invite.ID, dualwrite.Snapshot(invite))

	if err := s.addMembership(ctx, userID, invite.TeamID, "member", userID); err != nil {
		return nil, err
	}
	return s.memberships.GetActiveByUserAndTeam(ctx, userID, invite.TeamID)
}

// addMembership creates an active membership with the named role and
// mirrors it
func (s *Service) addMembership(ctx context.Context, userID, teamID, roleName, createdBy string) error {
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("resolve %s role: %w", roleName, err)
	}
	m := &storage.TeamMembership{
		UserID:    userID,
		TeamID:    teamID,
		RoleID:    role.ID,
		IsActive:  true,
		CreatedBy: createdBy,
	}
	id, err := s.memberships.Create(ctx, m)
	if err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	s.mirror.CreateDocument(ctx, storage.EntityTeamMembership, id, dualwrite.Snapshot(m))
	s.perms.InvalidateUser(userID, teamID)
	return nil
}

// insertJoinCode generates and stores a join code bound to a team,
// regenerating on collision
func (s *Service) insertJoinCode(ctx context.Context, createdBy, teamID, description string) (*storage.InviteCode, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		invite := &storage.InviteCode{
			Code:        GenerateCode(teamID),
			Kind:        storage.InviteTeamJoin,
			TeamID:      teamID,
			Description: description,
			CreatedBy:   createdBy,
		}
		id, err := s.invites.Insert(ctx, invite)
		if err == nil {
			s.mirror.CreateDocument(ctx, storage.EntityInviteCode, id, dualwrite.Snapshot(invite))
			return invite, nil
		}
		if !errors.Is(err, storage.ErrDuplicateCode) {
			return nil, fmt.Errorf("store join code: %w", err)
		}
	}
	return nil, ErrCodeGeneration
}

// CreateJoinCode issues a fresh single-use join code for a team. The
// actor needs the add_member permission.
func (s *Service) CreateJoinCode(ctx context.Context, actorID, teamID, description string) (*storage.InviteCode, error) {
	if err := s.perms.RequirePermission(ctx, actorID, teamID, rbac.PermAddMember); err != nil {
		return nil, err
	}
	return s.insertJoinCode(ctx, actorID, teamID, description)
}

// CreateCreationCode issues a team-creation code. These are handed out
// by operators; the API layer restricts who may call this.
func (s *Service) CreateCreationCode(ctx context.Context, issuedBy, description string) (*storage.InviteCode, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		invite := &storage.InviteCode{
			Code:        GenerateCode(issuedBy),
			Kind:        storage.InviteTeamCreation,
			Description: description,
			CreatedBy:   issuedBy,
		}
		id, err := s.invites.Insert(ctx, invite)
		if err == nil {
			s.mirror.CreateDocument(ctx, storage.EntityInviteCode, id, dualwrite.Snapshot(invite))
			return invite, nil
		}
		if !errors.Is(err, storage.ErrDuplicateCode) {
			return nil, fmt.Errorf("store creation code: %w", err)
		}
	}
	return nil, ErrCodeGeneration
}

// ListInviteCodes returns the codes a user has issued
func (s *Service) ListInviteCodes(ctx context.Context, userID string, kind storage.InviteCodeKind) ([]storage.InviteCode, error) {
	return s.invites.ListByCreator(ctx, userID, kind)
}

// GetTeam returns a team by ID
func (s *Service) GetTeam(ctx context.Context, teamID string) (*storage.Team, error) {
	return s.teams.GetByID(ctx, teamID)
}

// UpdateTeam updates a team's name and description
func (s *Service) UpdateTeam(ctx context.Context, actorID, teamID, name, description string) (*storage.Team, error) {
	if err := s.perms.RequirePermission(ctx, actorID, teamID, rbac.PermUpdateTeam); err != nil {
		return nil, err
	}
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		team.Name = name
	}
	if description != "" {
		team.Description = description
	}
	team.UpdatedBy = actorID
	if err := s.teams.Update(ctx, team); err != nil {
		return nil, err
	}
	s.mirror.UpdateDocument(ctx, storage.EntityTeam, teamID, dualwrite.Snapshot(team))
	return team, nil
}

// DeleteTeam soft-deletes a team. Owner only.
func (s *Service) DeleteTeam(ctx context.Context, actorID, teamID string) error {
	if err := s.perms.RequireOwner(ctx, actorID, teamID, "delete team"); err != nil {
		return err
	}
	if err := s.teams.SoftDelete(ctx, teamID, actorID); err != nil {
		return err
	}
	s.mirror.DeleteDocument(ctx, storage.EntityTeam, teamID)
	return nil
}

// ListMembers returns the team's active memberships
func (s *Service) ListMembers(ctx context.Context, actorID, teamID string) ([]storage.TeamMembership, error) {
	if err := s.perms.RequirePermission(ctx, actorID, teamID, rbac.PermViewMembers); err != nil {
		return nil, err
	}
	return s.memberships.ListActiveByTeam(ctx, teamID)
}

// AddMember adds a user to the team as a member
func (s *Service) AddMember(ctx context.Context, actorID, teamID, userID string) error {
	if err := s.perms.RequirePermission(ctx, actorID, teamID, rbac.PermAddMember); err != nil {
		return err
	}
	if _, err := s.memberships.GetActiveByUserAndTeam(ctx, userID, teamID); err == nil {
		return ErrAlreadyMember
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("check membership: %w", err)
	}
	return s.addMembership(ctx, userID, teamID, "member", actorID)
}

// RemoveMember deactivates a user's membership. The actor's role must
// strictly outrank the target's.
func (s *Service) RemoveMember(ctx context.Context, actorID, teamID, targetID string) error {
	if err := s.perms.RequirePermission(ctx, actorID, teamID, rbac.PermRemoveMember); err != nil {
		return err
	}
	if err := s.perms.RequireManageMember(ctx, actorID, teamID, targetID, "remove member"); err != nil {
		return err
	}

	m, err := s.memberships.GetActiveByUserAndTeam(ctx, targetID, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("load membership: %w", err)
	}
	if err := s.memberships.Deactivate(ctx, targetID, teamID, actorID); err != nil {
		return err
	}
	m.IsActive = false
	m.UpdatedBy = actorID
	s.mirror.UpdateDocument(ctx, storage.EntityTeamMembership, m.ID, dualwrite.Snapshot(m))
	s.perms.InvalidateUser(targetID, teamID)
	return nil
}

// PromoteToAdmin changes a member's role to admin. Owner only.
func (s *Service) PromoteToAdmin(ctx context.Context, actorID, teamID, targetID string) error {
	return s.changeRole(ctx, actorID, teamID, targetID, "admin", rbac.PermPromoteToAdmin, "promote to admin")
}

// DemoteToMember changes an admin's role back to member. Owner only.
func (s *Service) DemoteToMember(ctx context.Context, actorID, teamID, targetID string) error {
	return s.changeRole(ctx, actorID, teamID, targetID, "member", rbac.PermDemoteAdmin, "demote admin")
}

func (s *Service) changeRole(ctx context.Context, actorID, teamID, targetID, roleName string, perm rbac.Permission, action string) error {
	if err := s.perms.RequirePermission(ctx, actorID, teamID, perm); err != nil {
		return err
	}
	if err := s.perms.RequireManageMember(ctx, actorID, teamID, targetID, action); err != nil {
		return err
	}

	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("resolve %s role: %w", roleName, err)
	}
	if err := s.memberships.UpdateRole(ctx, targetID, teamID, role.ID, actorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotMember
		}
		return err
	}
	s.perms.InvalidateUser(targetID, teamID)

	if m, err := s.memberships.GetActiveByUserAndTeam(ctx, targetID, teamID); err == nil {
		s.mirror.UpdateDocument(ctx, storage.EntityTeamMembership, m.ID, dualwrite.Snapshot(m))
	}
	return nil
}

// AccessibleTeams returns every team the user can see
func (s *Service) AccessibleTeams(ctx context.Context, userID string) ([]storage.Team, error) {
	teamIDs, err := s.perms.AccessibleTeams(ctx, userID)
	if err != nil {
		return nil, err
	}
	teams := make([]storage.Team, 0, len(teamIDs))
	for teamID := range teamIDs {
		team, err := s.teams.GetByID(ctx, teamID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		teams = append(teams, *team)
	}
	return teams, nil
}
