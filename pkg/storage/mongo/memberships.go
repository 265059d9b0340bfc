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

// MembershipRepository is the primary-store implementation of
// storage.TeamMembershipRepository
type MembershipRepository struct {
	coll *mongo.Collection
}

// NewMembershipRepository creates a membership repository
func NewMembershipRepository(c *Client) *MembershipRepository {
	return &MembershipRepository{coll: c.db.Collection(collMemberships)}
}

func (r *MembershipRepository) GetByUserID(ctx context.Context, userID string) ([]storage.TeamMembership, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("find memberships: %w", err)
	}
	var memberships []storage.TeamMembership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("decode memberships: %w", err)
	}
	return memberships, nil
}

func (r *MembershipRepository) GetActiveByUserAndTeam(ctx context.Context, userID, teamID string) (*storage.TeamMembership, error) {
	var m storage.TeamMembership
	err := r.coll.FindOne(ctx, bson.M{
		"user_id":   userID,
		"team_id":   teamID,
		"is_active": true,
	}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return &m, nil
}

func (r *MembershipRepository) ListActiveByTeam(ctx context.Context, teamID string) ([]storage.TeamMembership, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"team_id": teamID, "is_active": true})
	if err != nil {
		return nil, fmt.Errorf("find team memberships: %w", err)
	}
	var memberships []storage.TeamMembership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("decode team memberships: %w", err)
	}
	return memberships, nil
}

func (r *MembershipRepository) Create(ctx context.Context, m *storage.TeamMembership) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("insert membership: %w", err)
	}
	return m.ID, nil
}

func (r *MembershipRepository) Deactivate(ctx context.Context, userID, teamID, updatedBy string) error {
	now := time.Now().UTC()
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "team_id": teamID, "is_active": true},
		bson.M{"$set": bson.M{
			"is_active":  false,
			"updated_by": updatedBy,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("deactivate membership: %w", err)
	}
	if result.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *MembershipRepository) UpdateRole(ctx context.Context, userID, teamID, roleID, updatedBy string) error {
	now := time.Now().UTC()
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "team_id": teamID, "is_active": true},
		bson.M{"$set": bson.M{
			"role_id":    roleID,
			"updated_by": updatedBy,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	if result.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
