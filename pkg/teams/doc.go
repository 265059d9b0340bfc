// Package teams implements team lifecycle, membership management and the
// invite-code flows. All authorization decisions are delegated to the
// rbac service; all primary-store mutations are mirrored through the
// dual-write shim.
package teams
