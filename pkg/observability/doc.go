// Package observability provides structured logging, Prometheus metrics and
// health checks for the huddle service.
//
// The health checker aggregates probes of every datastore the service talks
// to (MongoDB primary, PostgreSQL secondary, Redis) into a single status so
// that a half-migrated deployment is visible as degraded rather than healthy.
package observability
