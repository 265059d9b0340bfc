package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/pkg/config"
	"github.com/huddlehq/huddle/pkg/dualwrite"
	"github.com/huddlehq/huddle/pkg/middleware"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/rbac"
	"github.com/huddlehq/huddle/pkg/storage"
	"github.com/huddlehq/huddle/pkg/tasks"
	"github.com/huddlehq/huddle/pkg/teams"
)

const (
	testJWTSecret = "api-test-secret"
	testJWTIssuer = "huddle-test"
)

type memTeamRepo struct {
	mu    sync.Mutex
	teams map[string]*storage.Team
}

func newMemTeamRepo() *memTeamRepo {
	return &memTeamRepo{teams: make(map[string]*storage.Team)}
}

func (r *memTeamRepo) GetByID(_ context.Context, teamID string) (*storage.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok || t.IsDeleted {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTeamRepo) Create(_ context.Context, t *storage.Team) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now()
	cp := *t
	r.teams[t.ID] = &cp
	return t.ID, nil
}

func (r *memTeamRepo) Update(_ context.Context, t *storage.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.teams[t.ID]
	if !ok || cur.IsDeleted {
		return storage.ErrNotFound
	}
	cp := *t
	r.teams[t.ID] = &cp
	return nil
}

func (r *memTeamRepo) SoftDelete(_ context.Context, teamID, deletedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok || t.IsDeleted {
		return storage.ErrNotFound
	}
	t.IsDeleted = true
	t.UpdatedBy = deletedBy
	return nil
}

type memMembershipRepo struct {
	mu      sync.Mutex
	records []*storage.TeamMembership
}

func (r *memMembershipRepo) GetByUserID(_ context.Context, userID string) ([]storage.TeamMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []storage.TeamMembership
	for _, m := range r.records {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMembershipRepo) GetActiveByUserAndTeam(_ context.Context, userID, teamID string) (*storage.TeamMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.records {
		if m.UserID == userID && m.TeamID == teamID && m.IsActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memMembershipRepo) ListActiveByTeam(_ context.Context, teamID string) ([]storage.TeamMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []storage.TeamMembership
	for _, m := range r.records {
		if m.TeamID == teamID && m.IsActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMembershipRepo) Create(_ context.Context, m *storage.TeamMembership) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	cp := *m
	r.records = append(r.records, &cp)
	return m.ID, nil
}

func (r *memMembershipRepo) Deactivate(_ context.Context, userID, teamID, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.records {
		if m.UserID == userID && m.TeamID == teamID && m.IsActive {
			m.IsActive = false
			m.UpdatedBy = updatedBy
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *memMembershipRepo) UpdateRole(_ context.Context, userID, teamID, roleID, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.records {
		if m.UserID == userID && m.TeamID == teamID && m.IsActive {
			m.RoleID = roleID
			m.UpdatedBy = updatedBy
			return nil
		}
	}
	return storage.ErrNotFound
}

type memRoleRepo struct {
	roles map[string]*storage.RoleRecord
}

func newMemRoleRepo() *memRoleRepo {
	r := &memRoleRepo{roles: make(map[string]*storage.RoleRecord)}
	for _, name := range []string{"owner", "admin", "member"} {
		id := "role-" + name
		r.roles[id] = &storage.RoleRecord{ID: id, Name: name, IsActive: true}
	}
	return r
}

func (r *memRoleRepo) GetByID(_ context.Context, roleID string) (*storage.RoleRecord, error) {
	rec, ok := r.roles[roleID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memRoleRepo) GetByName(_ context.Context, name string) (*storage.RoleRecord, error) {
	for _, rec := range r.roles {
		if rec.Name == name && rec.IsActive {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*storage.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[string]*storage.Task)}
}

func (r *memTaskRepo) GetByID(_ context.Context, taskID string) (*storage.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok || t.IsDeleted {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) Create(_ context.Context, t *storage.Task) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now()
	cp := *t
	r.tasks[t.ID] = &cp
	return t.ID, nil
}

func (r *memTaskRepo) Update(_ context.Context, t *storage.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tasks[t.ID]
	if !ok || cur.IsDeleted {
		return storage.ErrNotFound
	}
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *memTaskRepo) SoftDelete(_ context.Context, taskID, deletedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok || t.IsDeleted {
		return storage.ErrNotFound
	}
	t.IsDeleted = true
	t.UpdatedBy = deletedBy
	return nil
}

type memAssignmentRepo struct {
	mu      sync.Mutex
	records []*storage.TaskAssignment
}

func (r *memAssignmentRepo) GetActiveByTaskID(_ context.Context, taskID string) (*storage.TaskAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.records {
		if a.TaskID == taskID && a.IsActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memAssignmentRepo) Reassign(_ context.Context, a *storage.TaskAssignment) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.records {
		if cur.TaskID == a.TaskID && cur.IsActive {
			cur.IsActive = false
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.IsActive = true
	a.CreatedAt = time.Now()
	cp := *a
	r.records = append(r.records, &cp)
	return a.ID, nil
}

func (r *memAssignmentRepo) Unassign(_ context.Context, taskID, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.records {
		if a.TaskID == taskID && a.IsActive {
			a.IsActive = false
			a.UpdatedBy = updatedBy
		}
	}
	return nil
}

type memInviteStore struct {
	mu      sync.Mutex
	records map[string]*storage.InviteCode
}

func newMemInviteStore() *memInviteStore {
	return &memInviteStore{records: make(map[string]*storage.InviteCode)}
}

func (s *memInviteStore) FindUnused(_ context.Context, code string) (*storage.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[code]
	if !ok || rec.IsUsed {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memInviteStore) Consume(_ context.Context, code, usedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[code]
	if !ok || rec.IsUsed {
		return false, nil
	}
	now := time.Now()
	rec.IsUsed = true
	rec.UsedBy = usedBy
	rec.UsedAt = &now
	return true, nil
}

func (s *memInviteStore) Insert(_ context.Context, c *storage.InviteCode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[c.Code]; exists {
		return "", storage.ErrDuplicateCode
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()
	cp := *c
	s.records[c.Code] = &cp
	return c.ID, nil
}

func (s *memInviteStore) ListByCreator(_ context.Context, createdBy string, kind storage.InviteCodeKind) ([]storage.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.InviteCode
	for _, rec := range s.records {
		if rec.CreatedBy == createdBy && rec.Kind == kind {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// apiEnv is a full router wired over in-memory stores
type apiEnv struct {
	router  http.Handler
	invites *memInviteStore
	teams   *memTeamRepo
	tasks   *memTaskRepo
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	teamRepo := newMemTeamRepo()
	membershipRepo := &memMembershipRepo{}
	roleRepo := newMemRoleRepo()
	taskRepo := newMemTaskRepo()
	assignmentRepo := &memAssignmentRepo{}
	inviteStore := newMemInviteStore()

	perms := rbac.NewService(membershipRepo, roleRepo, taskRepo, assignmentRepo, logger)
	mirror := dualwrite.NewMirror(nil, nil, logger, nil, false)
	teamService := teams.NewService(teamRepo, membershipRepo, roleRepo, inviteStore, perms, mirror, logger)
	taskService := tasks.NewService(taskRepo, assignmentRepo, perms, mirror, logger)

	router := NewRouter(RouterDeps{
		Config: &config.Config{},
		Logger: logger,
		Auth:   middleware.NewAuthMiddleware(testJWTSecret, testJWTIssuer),
		Guard:  rbac.NewGuard(perms),
		Teams:  NewTeamHandlers(teamService),
		Tasks:  NewTaskHandlers(taskService),
	})

	return &apiEnv{router: router, invites: inviteStore, teams: teamRepo, tasks: taskRepo}
}

func (e *apiEnv) seedCreationCode(t *testing.T, code string) {
	t.Helper()
	_, err := e.invites.Insert(context.Background(), &storage.InviteCode{
		Code:      code,
		Kind:      storage.InviteTeamCreation,
		CreatedBy: "admin-console",
	})
	require.NoError(t, err)
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    testJWTIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// do issues a request through the router as the given user. An empty
// userID sends no Authorization header.
func (e *apiEnv) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}
