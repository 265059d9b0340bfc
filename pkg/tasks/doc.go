// Package tasks implements task lifecycle and assignment. A task is
// linked to a team only through an active team assignment; access rules
// are evaluated by the rbac service from the creator, privacy flag and
// assignee relationship.
package tasks
