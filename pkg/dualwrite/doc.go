// Package dualwrite is the migration shim between the document primary
// store and the relational secondary store. Every primary-store mutation
// is mirrored as a best-effort projection: the secondary write can fail
// or be skipped without the caller ever seeing an error, and a sync
// ledger records the outcome so the reconciler can retry later.
package dualwrite
