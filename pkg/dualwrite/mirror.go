package dualwrite

import (
	"context"
	"time"

	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/storage"
)

// mirrorTimeout bounds one secondary-store write. The mirror detaches
// from the request context so an aborted request still finishes its
// projection.
const mirrorTimeout = 10 * time.Second

// Mirror projects primary-store mutations into the secondary store.
//
// The contract with callers is strict: Mirror never returns an error.
// The primary write has already happened by the time a Mirror method
// runs, and a secondary-store outage must not fail the request. The
// boolean result reports whether the projection landed, for logging and
// tests; callers must not branch business logic on it.
//
// Each attempt lands in the ledger as SYNCED or FAILED. PENDING never
// originates here; backfill tooling seeds PENDING rows directly and the
// reconciler drains them alongside FAILED ones.
type Mirror struct {
	writer  storage.SecondaryWriter
	ledger  storage.SyncLedger
	logger  *observability.Logger
	metrics *observability.Metrics
	enabled bool
}

// NewMirror creates the dual-write mirror. With enabled false every
// method is a no-op returning false.
func NewMirror(
	writer storage.SecondaryWriter,
	ledger storage.SyncLedger,
	logger *observability.Logger,
	metrics *observability.Metrics,
	enabled bool,
) *Mirror {
	return &Mirror{
		writer:  writer,
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
		enabled: enabled,
	}
}

// Enabled reports whether the mirror projects writes
func (m *Mirror) Enabled() bool {
	return m.enabled
}

// CreateDocument mirrors a newly inserted document
func (m *Mirror) CreateDocument(ctx context.Context, entity storage.EntityType, primaryID string, payload storage.Payload) bool {
	return m.mirror(ctx, storage.SyncOpCreate, entity, primaryID, payload)
}

// UpdateDocument mirrors an updated document. The payload is the full
// post-update snapshot, not a diff.
func (m *Mirror) UpdateDocument(ctx context.Context, entity storage.EntityType, primaryID string, payload storage.Payload) bool {
	return m.mirror(ctx, storage.SyncOpUpdate, entity, primaryID, payload)
}

// DeleteDocument mirrors a deleted document
func (m *Mirror) DeleteDocument(ctx context.Context, entity storage.EntityType, primaryID string) bool {
	return m.mirror(ctx, storage.SyncOpDelete, entity, primaryID, nil)
}

func (m *Mirror) mirror(ctx context.Context, op storage.SyncOp, entity storage.EntityType, primaryID string, payload storage.Payload) bool {
	if !m.enabled {
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	start := time.Now()
	err := m.apply(ctx, op, entity, primaryID, payload)
	duration := time.Since(start)

	now := time.Now().UTC()
	rec := &storage.SyncRecord{
		SourceID:   primaryID,
		EntityType: entity,
		Op:         op,
		Payload:    payload,
		SyncStatus: storage.SyncSynced,
		LastSyncAt: &now,
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		rec.SyncStatus = storage.SyncFailed
		rec.SyncError = err.Error()
		m.logger.WithError(err).WithFields(map[string]interface{}{
			"entity":    string(entity),
			"source_id": primaryID,
			"op":        string(op),
		}).Warn("secondary store write failed, will reconcile")
	}
	if m.metrics != nil {
		m.metrics.ObserveSync(string(entity), outcome, duration)
	}

	// The ledger lives in the primary store, so it stays writable when
	// the secondary store is down
	if lerr := m.ledger.Record(ctx, rec); lerr != nil {
		m.logger.WithError(lerr).WithFields(map[string]interface{}{
			"entity":    string(entity),
			"source_id": primaryID,
		}).Error("failed to record sync outcome")
	}

	return err == nil
}

func (m *Mirror) apply(ctx context.Context, op storage.SyncOp, entity storage.EntityType, primaryID string, payload storage.Payload) error {
	if op == storage.SyncOpDelete {
		return m.writer.Delete(ctx, entity, primaryID)
	}
	return m.writer.Upsert(ctx, entity, primaryID, payload)
}
