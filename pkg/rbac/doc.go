// Package rbac implements the role-based access control engine: the static
// role/permission catalog, the permission service that evaluates a user's
// effective access, and the HTTP guard that enforces it at the request
// boundary.
//
// Three team roles exist, strictly ordered Owner > Admin > Member. The
// catalog is compiled in and not user-configurable. Denials are returned as
// typed error values, never panics; the guard maps them to 401/403.
//
// The engine is fail-closed: any repository error during a check is logged
// and treated as a denial, never as a grant.
package rbac
