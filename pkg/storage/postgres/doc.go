// Package postgres implements the relational secondary store. During the
// migration it only receives projections from the dual-write shim; no
// read path depends on it yet.
package postgres
