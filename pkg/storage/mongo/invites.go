package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/huddlehq/huddle/pkg/storage"
)

// InviteCodeStore is the primary-store implementation of
// storage.InviteCodeStore
type InviteCodeStore struct {
	coll *mongo.Collection
}

// NewInviteCodeStore creates an invite code store
func NewInviteCodeStore(c *Client) *InviteCodeStore {
	return &InviteCodeStore{coll: c.db.Collection(collInviteCodes)}
}

func (s *InviteCodeStore) FindUnused(ctx context.Context, code string) (*storage.InviteCode, error) {
	var ic storage.InviteCode
	err := s.coll.FindOne(ctx, bson.M{"code": code, "is_used": false}).Decode(&ic)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invite code: %w", err)
	}
	return &ic, nil
}

// Consume flips is_used in one conditional update. The filter carries
// is_used=false, so with any number of concurrent consumers exactly one
// matches; everyone else sees false.
func (s *InviteCodeStore) Consume(ctx context.Context, code, usedBy string) (bool, error) {
	now := time.Now().UTC()
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"code": code, "is_used": false},
		bson.M{"$set": bson.M{
			"is_used": true,
			"used_by": usedBy,
			"used_at": now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("consume invite code: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (s *InviteCodeStore) Insert(ctx context.Context, c *storage.InviteCode) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	c.IsUsed = false
	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", storage.ErrDuplicateCode
		}
		return "", fmt.Errorf("insert invite code: %w", err)
	}
	return c.ID, nil
}

func (s *InviteCodeStore) ListByCreator(ctx context.Context, createdBy string, kind storage.InviteCodeKind) ([]storage.InviteCode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"created_by": createdBy, "kind": kind}, opts)
	if err != nil {
		return nil, fmt.Errorf("list invite codes: %w", err)
	}
	var codes []storage.InviteCode
	if err := cursor.All(ctx, &codes); err != nil {
		return nil, fmt.Errorf("decode invite codes: %w", err)
	}
	return codes, nil
}
