package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/huddlehq/huddle/pkg/contextkeys"
	"github.com/huddlehq/huddle/pkg/httputil"
	"github.com/huddlehq/huddle/pkg/storage"
	"github.com/huddlehq/huddle/pkg/teams"
)

// TeamHandlers serves the team, membership and invite endpoints
type TeamHandlers struct {
	service *teams.Service
}

// NewTeamHandlers creates team handlers
func NewTeamHandlers(service *teams.Service) *TeamHandlers {
	return &TeamHandlers{service: service}
}

// RegisterRoutes mounts the team routes on the router
func (h *TeamHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/teams", h.createTeam).Methods("POST")
	router.HandleFunc("/teams", h.listTeams).Methods("GET")
	router.HandleFunc("/teams/join", h.joinTeam).Methods("POST")
	router.HandleFunc("/teams/{teamID}", h.getTeam).Methods("GET")
	router.HandleFunc("/teams/{teamID}", h.updateTeam).Methods("PATCH")
	router.HandleFunc("/teams/{teamID}", h.deleteTeam).Methods("DELETE")
	router.HandleFunc("/teams/{teamID}/members", h.listMembers).Methods("GET")
	router.HandleFunc("/teams/{teamID}/members", h.addMember).Methods("POST")
	router.HandleFunc("/teams/{teamID}/members/{userID}", h.removeMember).Methods("DELETE")
	router.HandleFunc("/teams/{teamID}/members/{userID}/promote", h.promoteMember).Methods("POST")
	router.HandleFunc("/teams/{teamID}/members/{userID}/demote", h.demoteMember).Methods("POST")
	router.HandleFunc("/teams/{teamID}/invites", h.createJoinCode).Methods("POST")
	router.HandleFunc("/invites/creation", h.createCreationCode).Methods("POST")
	router.HandleFunc("/invites", h.listInvites).Methods("GET")
}

type createTeamRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	CreationCode string `json:"creation_code"`
}

func (h *TeamHandlers) createTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if req.CreationCode == "" {
		httputil.WriteBadRequest(w, "creation_code is required")
		return
	}

	team, err := h.service.CreateTeam(r.Context(), contextkeys.UserID(r.Context()), req.Name, req.Description, req.CreationCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, team)
}

func (h *TeamHandlers) listTeams(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.AccessibleTeams(r.Context(), contextkeys.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"teams": result})
}

func (h *TeamHandlers) getTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.GetTeam(r.Context(), mux.Vars(r)["teamID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, team)
}

type updateTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *TeamHandlers) updateTeam(w http.ResponseWriter, r *http.Request) {
	var req updateTeamRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	team, err := h.service.UpdateTeam(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["teamID"], req.Name, req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, team)
}

func (h *TeamHandlers) deleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTeam(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["teamID"]); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type joinTeamRequest struct {
	Code string `json:"code"`
}

func (h *TeamHandlers) joinTeam(w http.ResponseWriter, r *http.Request) {
	var req joinTeamRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Code == "" {
		httputil.WriteBadRequest(w, "code is required")
		return
	}
	membership, err := h.service.JoinTeam(r.Context(), contextkeys.UserID(r.Context()), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, membership)
}

func (h *TeamHandlers) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["teamID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"members": members})
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

func (h *TeamHandlers) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}
	if err := h.service.AddMember(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["teamID"], req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]string{"user_id": req.UserID})
}

func (h *TeamHandlers) removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.RemoveMember(r.Context(), contextkeys.UserID(r.Context()), vars["teamID"], vars["userID"]); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *TeamHandlers) promoteMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.PromoteToAdmin(r.Context(), contextkeys.UserID(r.Context()), vars["teamID"], vars["userID"]); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"user_id": vars["userID"], "role": "admin"})
}

func (h *TeamHandlers) demoteMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.DemoteToMember(r.Context(), contextkeys.UserID(r.Context()), vars["teamID"], vars["userID"]); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"user_id": vars["userID"], "role": "member"})
}

type createInviteRequest struct {
	Description string `json:"description"`
}

func (h *TeamHandlers) createJoinCode(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	invite, err := h.service.CreateJoinCode(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["teamID"], req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, invite)
}

func (h *TeamHandlers) createCreationCode(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	invite, err := h.service.CreateCreationCode(r.Context(), contextkeys.UserID(r.Context()), req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, invite)
}

func (h *TeamHandlers) listInvites(w http.ResponseWriter, r *http.Request) {
	kind := storage.InviteCodeKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = storage.InviteTeamJoin
	}
	invites, err := h.service.ListInviteCodes(r.Context(), contextkeys.UserID(r.Context()), kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"invites": invites})
}
