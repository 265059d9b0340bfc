package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/huddlehq/huddle/pkg/storage"
)

// SyncLedger is the primary-store implementation of storage.SyncLedger.
// The ledger lives beside the documents it tracks so that sync outcomes
// stay recordable when the relational store is unreachable.
type SyncLedger struct {
	coll *mongo.Collection
}

// NewSyncLedger creates a sync ledger
func NewSyncLedger(c *Client) *SyncLedger {
	return &SyncLedger{coll: c.db.Collection(collSyncLedger)}
}

// Record upserts the entry keyed by (entity_type, source_id), keeping
// one ledger row per document with its latest sync outcome
func (l *SyncLedger) Record(ctx context.Context, rec *storage.SyncRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := l.coll.UpdateOne(ctx,
		bson.M{"entity_type": rec.EntityType, "source_id": rec.SourceID},
		bson.M{
			"$set": bson.M{
				"op":           rec.Op,
				"payload":      rec.Payload,
				"sync_status":  rec.SyncStatus,
				"sync_error":   rec.SyncError,
				"last_sync_at": rec.LastSyncAt,
			},
			"$inc": bson.M{"attempts": 1},
			"$setOnInsert": bson.M{
				"_id":        rec.ID,
				"created_at": time.Now().UTC(),
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("record sync outcome: %w", err)
	}
	return nil
}

func (l *SyncLedger) ListUnsynced(ctx context.Context, limit int) ([]storage.SyncRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := l.coll.Find(ctx,
		bson.M{"sync_status": bson.M{"$in": []storage.SyncStatus{storage.SyncPending, storage.SyncFailed}}},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("list unsynced records: %w", err)
	}
	var records []storage.SyncRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode unsynced records: %w", err)
	}
	return records, nil
}

func (l *SyncLedger) CountUnsynced(ctx context.Context) (int64, error) {
	count, err := l.coll.CountDocuments(ctx,
		bson.M{"sync_status": bson.M{"$in": []storage.SyncStatus{storage.SyncPending, storage.SyncFailed}}},
	)
	if err != nil {
		return 0, fmt.Errorf("count unsynced records: %w", err)
	}
	return count, nil
}
