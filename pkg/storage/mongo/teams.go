package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/huddlehq/huddle/pkg/storage"
)

// TeamRepository is the primary-store implementation of
// storage.TeamRepository
type TeamRepository struct {
	coll *mongo.Collection
}

// NewTeamRepository creates a team repository
func NewTeamRepository(c *Client) *TeamRepository {
	return &TeamRepository{coll: c.db.Collection(collTeams)}
}

func (r *TeamRepository) GetByID(ctx context.Context, teamID string) (*storage.Team, error) {
	var team storage.Team
	err := r.coll.FindOne(ctx, bson.M{"_id": teamID, "is_deleted": false}).Decode(&team)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	return &team, nil
}

func (r *TeamRepository) Create(ctx context.Context, t *storage.Team) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	if _, err := r.coll.InsertOne(ctx, t); err != nil {
		return "", fmt.Errorf("insert team: %w", err)
	}
	return t.ID, nil
}

func (r *TeamRepository) Update(ctx context.Context, t *storage.Team) error {
	now := time.Now().UTC()
	t.UpdatedAt = &now
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": t.ID, "is_deleted": false},
		bson.M{"$set": bson.M{
			"name":        t.Name,
			"description": t.Description,
			"updated_by":  t.UpdatedBy,
			"updated_at":  now,
		}},
	)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if result.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *TeamRepository) SoftDelete(ctx context.Context, teamID, deletedBy string) error {
	now := time.Now().UTC()
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": teamID, "is_deleted": false},
		bson.M{"$set": bson.M{
			"is_deleted": true,
			"updated_by": deletedBy,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if result.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
