package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/huddlehq/huddle/pkg/storage"
)

// RoleRepository is the primary-store implementation of
// storage.RoleRepository
type RoleRepository struct {
	coll *mongo.Collection
}

// NewRoleRepository creates a role repository
func NewRoleRepository(c *Client) *RoleRepository {
	return &RoleRepository{coll: c.db.Collection(collRoles)}
}

func (r *RoleRepository) GetByID(ctx context.Context, roleID string) (*storage.RoleRecord, error) {
	var role storage.RoleRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": roleID}).Decode(&role)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find role: %w", err)
	}
	return &role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*storage.RoleRecord, error) {
	var role storage.RoleRecord
	err := r.coll.FindOne(ctx, bson.M{"name": name, "is_active": true}).Decode(&role)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find role by name: %w", err)
	}
	return &role, nil
}

// EnsureBuiltinRoles inserts the owner, admin and member role records if
// they are missing. Run on startup.
func (r *RoleRepository) EnsureBuiltinRoles(ctx context.Context) error {
	for _, name := range []string{"owner", "admin", "member"} {
		_, err := r.coll.UpdateOne(ctx,
			bson.M{"name": name},
			bson.M{"$setOnInsert": bson.M{
				"_id":       "role-" + name,
				"name":      name,
				"is_active": true,
			}},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("ensure role %s: %w", name, err)
		}
	}
	return nil
}
