package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/pkg/storage"
)

func TestRouterRequiresAuthentication(t *testing.T) {
	env := newAPIEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"list teams", http.MethodGet, "/api/v1/teams"},
		{"create task", http.MethodPost, "/api/v1/tasks"},
		{"get team", http.MethodGet, "/api/v1/teams/t1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestTeamLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	env.seedCreationCode(t, "AAAAAA")

	// alice creates a team by redeeming the creation code
	rec := env.do(t, http.MethodPost, "/api/v1/teams", "alice", map[string]interface{}{
		"name":          "platform",
		"description":   "infra crew",
		"creation_code": "AAAAAA",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var team storage.Team
	decodeBody(t, rec, &team)
	require.NotEmpty(t, team.ID)
	assert.Equal(t, "platform", team.Name)
	assert.Regexp(t, "^[0-9A-Z]{6}$", team.InviteCode)

	// the creation code is spent
	rec = env.do(t, http.MethodPost, "/api/v1/teams", "mallory", map[string]interface{}{
		"name":          "imposters",
		"creation_code": "AAAAAA",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// bob joins with the team's join code
	rec = env.do(t, http.MethodPost, "/api/v1/teams/join", "bob", map[string]string{
		"code": team.InviteCode,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// the join code is single use too
	rec = env.do(t, http.MethodPost, "/api/v1/teams/join", "carol", map[string]string{
		"code": team.InviteCode,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// members can read the team, strangers cannot
	rec = env.do(t, http.MethodGet, "/api/v1/teams/"+team.ID, "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/teams/"+team.ID, "carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// a member cannot rename the team, the owner can
	rec = env.do(t, http.MethodPatch, "/api/v1/teams/"+team.ID, "bob", map[string]string{
		"name": "renamed",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodPatch, "/api/v1/teams/"+team.ID, "alice", map[string]string{
		"name": "renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated storage.Team
	decodeBody(t, rec, &updated)
	assert.Equal(t, "renamed", updated.Name)

	// only the owner can delete
	rec = env.do(t, http.MethodDelete, "/api/v1/teams/"+team.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/teams/"+team.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMemberManagementOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	env.seedCreationCode(t, "BBBBBB")

	rec := env.do(t, http.MethodPost, "/api/v1/teams", "alice", map[string]interface{}{
		"name":          "core",
		"creation_code": "BBBBBB",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var team storage.Team
	decodeBody(t, rec, &team)

	// owner adds bob directly
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/members", "alice", map[string]string{
		"user_id": "bob",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// adding bob again conflicts
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/members", "alice", map[string]string{
		"user_id": "bob",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// bob cannot promote himself
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/members/bob/promote", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// owner promotes bob to admin
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/members/bob/promote", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// admin bob can now add members
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/members", "bob", map[string]string{
		"user_id": "carol",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// but bob cannot remove the owner
	rec = env.do(t, http.MethodDelete, "/api/v1/teams/"+team.ID+"/members/alice", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// owner demotes bob and removes carol
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/members/bob/demote", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/teams/"+team.ID+"/members/carol", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// removed carol no longer appears in the member list
	rec = env.do(t, http.MethodGet, "/api/v1/teams/"+team.ID+"/members", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var memberList struct {
		Members []storage.TeamMembership `json:"members"`
	}
	decodeBody(t, rec, &memberList)
	ids := make([]string, 0, len(memberList.Members))
	for _, m := range memberList.Members {
		ids = append(ids, m.UserID)
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)
}

func TestTaskFlowOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	// alice creates an unassigned public task
	rec := env.do(t, http.MethodPost, "/api/v1/tasks", "alice", map[string]interface{}{
		"title":       "ship it",
		"description": "release checklist",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task storage.Task
	decodeBody(t, rec, &task)
	require.NotEmpty(t, task.ID)

	// unassigned public tasks are readable by anyone
	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// assigning it to bob locks carol out
	rec = env.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID+"/assignment", "alice", map[string]string{
		"kind": "user",
		"id":   "bob",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// bob, the assignee, can read his assignment
	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/assignment", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Assignment *storage.TaskAssignment `json:"assignment"`
	}
	decodeBody(t, rec, &body)
	require.NotNil(t, body.Assignment)
	assert.Equal(t, storage.AssigneeUser, body.Assignment.Assignee.Kind)
	assert.Equal(t, "bob", body.Assignment.Assignee.ID)

	// only someone with modify access can reassign; carol cannot
	rec = env.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID+"/assignment", "carol", map[string]string{
		"kind": "user",
		"id":   "carol",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the creator clears the assignment, reopening the task
	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID+"/assignment", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "carol", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// deleting hides the task from everyone
	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPrivateTaskHiddenFromOthers(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", "alice", map[string]interface{}{
		"title":      "secret",
		"is_private": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var task storage.Task
	decodeBody(t, rec, &task)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTeamTaskOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	env.seedCreationCode(t, "CCCCCC")

	rec := env.do(t, http.MethodPost, "/api/v1/teams", "alice", map[string]interface{}{
		"name":          "triage",
		"creation_code": "CCCCCC",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var team storage.Team
	decodeBody(t, rec, &team)

	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/members", "alice", map[string]string{
		"user_id": "bob",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// a non-member cannot create a task in the team
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", "carol", map[string]interface{}{
		"title":   "intrusion",
		"team_id": team.ID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// a private team task is rejected up front
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", "alice", map[string]interface{}{
		"title":      "oxymoron",
		"team_id":    team.ID,
		"is_private": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// member bob creates a team task; teammates can read it, outsiders not
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", "bob", map[string]interface{}{
		"title":   "rotate pager",
		"team_id": team.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task storage.Task
	decodeBody(t, rec, &task)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, "carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	env := newAPIEnv(t)

	// unknown invite code
	rec := env.do(t, http.MethodPost, "/api/v1/teams/join", "alice", map[string]string{
		"code": "ZZZZZZ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown task falls under the guard, which denies without
	// revealing existence
	rec = env.do(t, http.MethodGet, "/api/v1/tasks/no-such-task", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// missing required fields
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", "alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/teams", "alice", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// malformed body
	rec = env.do(t, http.MethodPost, "/api/v1/teams/join", "alice", "not-an-object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInviteEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.seedCreationCode(t, "DDDDDD")

	rec := env.do(t, http.MethodPost, "/api/v1/teams", "alice", map[string]interface{}{
		"name":          "growth",
		"creation_code": "DDDDDD",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var team storage.Team
	decodeBody(t, rec, &team)

	// owner mints a fresh join code
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/invites", "alice", map[string]string{
		"description": "for the offsite",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var invite storage.InviteCode
	decodeBody(t, rec, &invite)
	assert.Regexp(t, "^[0-9A-Z]{6}$", invite.Code)
	assert.Equal(t, storage.InviteTeamJoin, invite.Kind)
	assert.Equal(t, team.ID, invite.TeamID)

	// a stranger cannot mint codes for the team
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID+"/invites", "bob", map[string]string{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the minted code admits bob
	rec = env.do(t, http.MethodPost, "/api/v1/teams/join", "bob", map[string]string{
		"code": invite.Code,
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// alice lists her join codes
	rec = env.do(t, http.MethodGet, "/api/v1/invites?kind=team_join", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inviteList struct {
		Invites []storage.InviteCode `json:"invites"`
	}
	decodeBody(t, rec, &inviteList)
	require.NotEmpty(t, inviteList.Invites)
}
