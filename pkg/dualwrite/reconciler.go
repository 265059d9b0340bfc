package dualwrite

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/storage"
)

// Reconciler replays unsynced ledger entries against the secondary store
// on a cron schedule. It drains PENDING and FAILED records oldest first;
// a record that fails again stays FAILED with the fresh error.
type Reconciler struct {
	writer  storage.SecondaryWriter
	ledger  storage.SyncLedger
	logger  *observability.Logger
	metrics *observability.Metrics
	batch   int

	cron *cron.Cron
}

// NewReconciler creates a reconciler draining up to batch records per run
func NewReconciler(
	writer storage.SecondaryWriter,
	ledger storage.SyncLedger,
	logger *observability.Logger,
	metrics *observability.Metrics,
	batch int,
) *Reconciler {
	if batch <= 0 {
		batch = 100
	}
	return &Reconciler{
		writer:  writer,
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
		batch:   batch,
	}
}

// Start schedules reconciliation runs. The schedule accepts standard cron
// expressions and descriptors like "@every 5m".
func (r *Reconciler) Start(schedule string) error {
	r.cron = cron.New()
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		r.Run(ctx)
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Run drains one batch of unsynced records. Returns the number of records
// that synced successfully.
func (r *Reconciler) Run(ctx context.Context) int {
	records, err := r.ledger.ListUnsynced(ctx, r.batch)
	if err != nil {
		r.logger.WithError(err).Error("failed to list unsynced records")
		return 0
	}

	synced := 0
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		if r.retry(ctx, &records[i]) {
			synced++
		}
	}

	if count, err := r.ledger.CountUnsynced(ctx); err == nil && r.metrics != nil {
		r.metrics.SyncPendingGauge.Set(float64(count))
	}

	if len(records) > 0 {
		r.logger.WithFields(map[string]interface{}{
			"attempted": len(records),
			"synced":    synced,
		}).Info("reconciliation run complete")
	}
	return synced
}

func (r *Reconciler) retry(ctx context.Context, rec *storage.SyncRecord) bool {
	start := time.Now()
	var err error
	if rec.Op == storage.SyncOpDelete {
		err = r.writer.Delete(ctx, rec.EntityType, rec.SourceID)
	} else {
		err = r.writer.Upsert(ctx, rec.EntityType, rec.SourceID, rec.Payload)
	}
	duration := time.Since(start)

	now := time.Now().UTC()
	rec.LastSyncAt = &now
	outcome := "success"
	if err != nil {
		outcome = "failure"
		rec.SyncStatus = storage.SyncFailed
		rec.SyncError = err.Error()
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"entity":    string(rec.EntityType),
			"source_id": rec.SourceID,
		}).Warn("reconciliation retry failed")
	} else {
		rec.SyncStatus = storage.SyncSynced
		rec.SyncError = ""
	}
	if r.metrics != nil {
		r.metrics.ObserveSync(string(rec.EntityType), outcome, duration)
	}

	if lerr := r.ledger.Record(ctx, rec); lerr != nil {
		r.logger.WithError(lerr).Error("failed to record reconciliation outcome")
	}
	return err == nil
}
