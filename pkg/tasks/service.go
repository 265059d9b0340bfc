package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/huddlehq/huddle/pkg/dualwrite"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/rbac"
	"github.com/huddlehq/huddle/pkg/storage"
)

// Service implements task lifecycle and assignment operations
type Service struct {
	tasks       storage.TaskRepository
	assignments storage.TaskAssignmentRepository
	perms       *rbac.Service
	mirror      *dualwrite.Mirror
	logger      *observability.Logger
}

// NewService creates a task service
func NewService(
	tasks storage.TaskRepository,
	assignments storage.TaskAssignmentRepository,
	perms *rbac.Service,
	mirror *dualwrite.Mirror,
	logger *observability.Logger,
) *Service {
	return &Service{
		tasks:       tasks,
		assignments: assignments,
		perms:       perms,
		mirror:      mirror,
		logger:      logger,
	}
}

// CreateTask creates a personal task owned by the creator
func (s *Service) CreateTask(ctx context.Context, creatorID, title, description string, isPrivate bool) (*storage.Task, error) {
	task := &storage.Task{
		Title:       title,
		Description: description,
		IsPrivate:   isPrivate,
		CreatedBy:   creatorID,
	}
	id, err := s.tasks.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.mirror.CreateDocument(ctx, storage.EntityTask, id, dualwrite.Snapshot(task))
	return task, nil
}

// CreateTeamTask creates a task and assigns it to the team in one
// operation. The creator needs the create_team_task permission there.
func (s *Service) CreateTeamTask(ctx context.Context, creatorID, teamID, title, description string) (*storage.Task, error) {
	if err := s.perms.RequirePermission(ctx, creatorID, teamID, rbac.PermCreateTeamTask); err != nil {
		return nil, err
	}
	task, err := s.CreateTask(ctx, creatorID, title, description, false)
	if err != nil {
		return nil, err
	}
	if err := s.assign(ctx, creatorID, task.ID, storage.AssigneeRef{Kind: storage.AssigneeTeam, ID: teamID}); err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask returns a task the user may view
func (s *Service) GetTask(ctx context.Context, userID, taskID string) (*storage.Task, error) {
	if err := s.perms.RequireTaskAccess(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.tasks.GetByID(ctx, taskID)
}

// GetAssignment returns the task's active assignment, or nil when the
// task is unassigned
func (s *Service) GetAssignment(ctx context.Context, userID, taskID string) (*storage.TaskAssignment, error) {
	if err := s.perms.RequireTaskAccess(ctx, userID, taskID); err != nil {
		return nil, err
	}
	assignment, err := s.assignments.GetActiveByTaskID(ctx, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return assignment, err
}

// UpdateTask updates a task's fields
func (s *Service) UpdateTask(ctx context.Context, userID, taskID, title, description string, isPrivate *bool) (*storage.Task, error) {
	if err := s.perms.RequireTaskModify(ctx, userID, taskID); err != nil {
		return nil, err
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if title != "" {
		task.Title = title
	}
	if description != "" {
		task.Description = description
	}
	if isPrivate != nil {
		task.IsPrivate = *isPrivate
	}
	task.UpdatedBy = userID
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	s.mirror.UpdateDocument(ctx, storage.EntityTask, taskID, dualwrite.Snapshot(task))
	return task, nil
}

// DeleteTask soft-deletes a task
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := s.perms.RequireTaskModify(ctx, userID, taskID); err != nil {
		return err
	}
	if err := s.tasks.SoftDelete(ctx, taskID, userID); err != nil {
		return err
	}
	s.mirror.DeleteDocument(ctx, storage.EntityTask, taskID)
	return nil
}

// AssignToUser makes the user the task's active assignee, replacing any
// current assignee
func (s *Service) AssignToUser(ctx context.Context, actorID, taskID, assigneeID string) error {
	if err := s.perms.RequireTaskModify(ctx, actorID, taskID); err != nil {
		return err
	}
	return s.assign(ctx, actorID, taskID, storage.AssigneeRef{Kind: storage.AssigneeUser, ID: assigneeID})
}

// AssignToTeam makes the team the task's active assignee, replacing any
// current assignee
func (s *Service) AssignToTeam(ctx context.Context, actorID, taskID, teamID string) error {
	if err := s.perms.RequireTaskModify(ctx, actorID, taskID); err != nil {
		return err
	}
	if err := s.perms.RequireMembership(ctx, actorID, teamID, "assign task to team"); err != nil {
		return err
	}
	return s.assign(ctx, actorID, taskID, storage.AssigneeRef{Kind: storage.AssigneeTeam, ID: teamID})
}

// assign swaps the active assignee. The repository's Reassign is a
// single transaction, so two concurrent swaps cannot leave the task with
// two active assignments.
func (s *Service) assign(ctx context.Context, actorID, taskID string, assignee storage.AssigneeRef) error {
	a := &storage.TaskAssignment{
		TaskID:    taskID,
		Assignee:  assignee,
		CreatedBy: actorID,
	}
	id, err := s.assignments.Reassign(ctx, a)
	if err != nil {
		return fmt.Errorf("reassign task: %w", err)
	}
	s.mirror.CreateDocument(ctx, storage.EntityTaskAssignment, id, dualwrite.Snapshot(a))
	return nil
}

// Unassign removes the task's active assignee. With no assignee the
// task becomes open to anyone unless it is private.
func (s *Service) Unassign(ctx context.Context, actorID, taskID string) error {
	if err := s.perms.RequireTaskModify(ctx, actorID, taskID); err != nil {
		return err
	}
	assignment, err := s.assignments.GetActiveByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.assignments.Unassign(ctx, taskID, actorID); err != nil {
		return err
	}
	assignment.IsActive = false
	assignment.UpdatedBy = actorID
	s.mirror.UpdateDocument(ctx, storage.EntityTaskAssignment, assignment.ID, dualwrite.Snapshot(assignment))
	return nil
}
