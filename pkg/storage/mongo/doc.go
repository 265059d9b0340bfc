// Package mongo implements the primary document store. It is the system
// of record during the relational migration; every repository interface
// in pkg/storage is backed here, including the dual-write sync ledger.
package mongo
