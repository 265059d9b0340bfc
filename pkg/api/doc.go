// Package api exposes the HTTP surface: team, membership, invite and
// task endpoints under /api/v1. Authentication, rate limiting and
// route-level authorization are applied as middleware; handlers call the
// domain services and translate their errors to status codes.
package api
