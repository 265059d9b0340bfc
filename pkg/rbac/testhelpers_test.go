package rbac

import (
	"context"
	"io"
	"time"

	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/storage"
)

// Map-backed repository fakes. Each carries an err field so tests can
// force repository failures and assert fail-closed behavior.

type fakeMembershipRepo struct {
	memberships []storage.TeamMembership
	err         error
}

func (f *fakeMembershipRepo) GetByUserID(_ context.Context, userID string) ([]storage.TeamMembership, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []storage.TeamMembership
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) GetActiveByUserAndTeam(_ context.Context, userID, teamID string) (*storage.TeamMembership, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i, m := range f.memberships {
		if m.UserID == userID && m.TeamID == teamID && m.IsActive {
			return &f.memberships[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeMembershipRepo) ListActiveByTeam(_ context.Context, teamID string) ([]storage.TeamMembership, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []storage.TeamMembership
	for _, m := range f.memberships {
		if m.TeamID == teamID && m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) Create(_ context.Context, m *storage.TeamMembership) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.memberships = append(f.memberships, *m)
	return m.ID, nil
}

func (f *fakeMembershipRepo) Deactivate(_ context.Context, userID, teamID, _ string) error {
	if f.err != nil {
		return f.err
	}
	for i, m := range f.memberships {
		if m.UserID == userID && m.TeamID == teamID && m.IsActive {
			f.memberships[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeMembershipRepo) UpdateRole(_ context.Context, userID, teamID, roleID, _ string) error {
	if f.err != nil {
		return f.err
	}
	for i, m := range f.memberships {
		if m.UserID == userID && m.TeamID == teamID && m.IsActive {
			f.memberships[i].RoleID = roleID
		}
	}
	return nil
}

type fakeRoleRepo struct {
	roles map[string]*storage.RoleRecord
	err   error
}

func (f *fakeRoleRepo) GetByID(_ context.Context, roleID string) (*storage.RoleRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.roles[roleID]; ok {
		return r, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeRoleRepo) GetByName(_ context.Context, name string) (*storage.RoleRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.roles {
		if r.Name == name && r.IsActive {
			return r, nil
		}
	}
	return nil, storage.ErrNotFound
}

type fakeTaskRepo struct {
	tasks map[string]*storage.Task
	err   error
}

func (f *fakeTaskRepo) GetByID(_ context.Context, taskID string) (*storage.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.tasks[taskID]; ok {
		return t, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeTaskRepo) Create(_ context.Context, t *storage.Task) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.tasks[t.ID] = t
	return t.ID, nil
}

func (f *fakeTaskRepo) Update(_ context.Context, t *storage.Task) error {
	if f.err != nil {
		return f.err
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeTaskRepo) SoftDelete(_ context.Context, taskID, _ string) error {
	if f.err != nil {
		return f.err
	}
	if t, ok := f.tasks[taskID]; ok {
		t.IsDeleted = true
	}
	return nil
}

type fakeAssignmentRepo struct {
	assignments map[string]*storage.TaskAssignment
	err         error
}

func (f *fakeAssignmentRepo) GetActiveByTaskID(_ context.Context, taskID string) (*storage.TaskAssignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.assignments[taskID]; ok && a.IsActive {
		return a, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeAssignmentRepo) Reassign(_ context.Context, a *storage.TaskAssignment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.assignments[a.TaskID] = a
	return a.ID, nil
}

func (f *fakeAssignmentRepo) Unassign(_ context.Context, taskID, _ string) error {
	if f.err != nil {
		return f.err
	}
	if a, ok := f.assignments[taskID]; ok {
		a.IsActive = false
	}
	return nil
}

// testEnv bundles a Service with its fakes so tests can mutate state and
// force failures mid-test.
type testEnv struct {
	service     *Service
	memberships *fakeMembershipRepo
	roles       *fakeRoleRepo
	tasks       *fakeTaskRepo
	assignments *fakeAssignmentRepo
}

func newTestEnv(opts ...Option) *testEnv {
	env := &testEnv{
		memberships: &fakeMembershipRepo{},
		roles: &fakeRoleRepo{roles: map[string]*storage.RoleRecord{
			"role-owner":  {ID: "role-owner", Name: "owner", IsActive: true},
			"role-admin":  {ID: "role-admin", Name: "admin", IsActive: true},
			"role-member": {ID: "role-member", Name: "member", IsActive: true},
		}},
		tasks:       &fakeTaskRepo{tasks: map[string]*storage.Task{}},
		assignments: &fakeAssignmentRepo{assignments: map[string]*storage.TaskAssignment{}},
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	env.service = NewService(env.memberships, env.roles, env.tasks, env.assignments, logger, opts...)
	return env
}

func (e *testEnv) addMember(userID, teamID, roleID string) {
	e.memberships.memberships = append(e.memberships.memberships, storage.TeamMembership{
		ID:        userID + "-" + teamID,
		UserID:    userID,
		TeamID:    teamID,
		RoleID:    roleID,
		IsActive:  true,
		CreatedAt: time.Now(),
	})
}
