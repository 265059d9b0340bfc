// Package storage defines the domain records and repository contracts shared
// by the permission engine, the team/task services and the dual-write shim.
//
// The service is mid-migration from MongoDB to PostgreSQL. Reads trust only
// the primary (document) store; the secondary (relational) store is written
// through the dual-write shim and carries per-record sync bookkeeping for
// reconciliation. Implementations live in the mongo and postgres
// subpackages.
package storage
