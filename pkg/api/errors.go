package api

import (
	"errors"
	"net/http"

	"github.com/huddlehq/huddle/pkg/httputil"
	"github.com/huddlehq/huddle/pkg/rbac"
	"github.com/huddlehq/huddle/pkg/storage"
	"github.com/huddlehq/huddle/pkg/teams"
)

// writeServiceError maps domain errors onto HTTP status codes. Anything
// unrecognized is a 500 with a generic body; internals never leak.
func writeServiceError(w http.ResponseWriter, err error) {
	if denial, ok := rbac.IsDenial(err); ok {
		httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
			"error": denial.Error(),
			"kind":  string(denial.Kind),
		})
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "not found")
	case errors.Is(err, teams.ErrInviteInvalid):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, teams.ErrAlreadyMember):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, teams.ErrNotMember):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, teams.ErrCodeGeneration):
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
