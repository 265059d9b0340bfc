package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/huddlehq/huddle/pkg/contextkeys"
	"github.com/huddlehq/huddle/pkg/httputil"
	"github.com/huddlehq/huddle/pkg/storage"
	"github.com/huddlehq/huddle/pkg/tasks"
)

// TaskHandlers serves the task and assignment endpoints
type TaskHandlers struct {
	service *tasks.Service
}

// NewTaskHandlers creates task handlers
func NewTaskHandlers(service *tasks.Service) *TaskHandlers {
	return &TaskHandlers{service: service}
}

// RegisterRoutes mounts the task routes on the router
func (h *TaskHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tasks", h.createTask).Methods("POST")
	router.HandleFunc("/tasks/{taskID}", h.getTask).Methods("GET")
	router.HandleFunc("/tasks/{taskID}", h.updateTask).Methods("PATCH")
	router.HandleFunc("/tasks/{taskID}", h.deleteTask).Methods("DELETE")
	router.HandleFunc("/tasks/{taskID}/assignment", h.getAssignment).Methods("GET")
	router.HandleFunc("/tasks/{taskID}/assignment", h.setAssignment).Methods("PUT")
	router.HandleFunc("/tasks/{taskID}/assignment", h.unassign).Methods("DELETE")
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	TeamID      string `json:"team_id"`
}

func (h *TaskHandlers) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}
	if req.TeamID != "" && req.IsPrivate {
		httputil.WriteBadRequest(w, "a team task cannot be private")
		return
	}

	userID := contextkeys.UserID(r.Context())
	var task *storage.Task
	var err error
	if req.TeamID != "" {
		task, err = h.service.CreateTeamTask(r.Context(), userID, req.TeamID, req.Title, req.Description)
	} else {
		task, err = h.service.CreateTask(r.Context(), userID, req.Title, req.Description, req.IsPrivate)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, task)
}

func (h *TaskHandlers) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.GetTask(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["taskID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

type updateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPrivate   *bool  `json:"is_private"`
}

func (h *TaskHandlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	task, err := h.service.UpdateTask(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["taskID"], req.Title, req.Description, req.IsPrivate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

func (h *TaskHandlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTask(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["taskID"]); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *TaskHandlers) getAssignment(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.service.GetAssignment(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["taskID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if assignment == nil {
		httputil.WriteSuccess(w, map[string]interface{}{"assignment": nil})
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"assignment": assignment})
}

type setAssignmentRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (h *TaskHandlers) setAssignment(w http.ResponseWriter, r *http.Request) {
	var req setAssignmentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.ID == "" {
		httputil.WriteBadRequest(w, "id is required")
		return
	}

	userID := contextkeys.UserID(r.Context())
	taskID := mux.Vars(r)["taskID"]
	var err error
	switch storage.AssigneeKind(req.Kind) {
	case storage.AssigneeUser:
		err = h.service.AssignToUser(r.Context(), userID, taskID, req.ID)
	case storage.AssigneeTeam:
		err = h.service.AssignToTeam(r.Context(), userID, taskID, req.ID)
	default:
		httputil.WriteBadRequest(w, "kind must be user or team")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"kind": req.Kind, "id": req.ID})
}

func (h *TaskHandlers) unassign(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unassign(r.Context(), contextkeys.UserID(r.Context()), mux.Vars(r)["taskID"]); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
