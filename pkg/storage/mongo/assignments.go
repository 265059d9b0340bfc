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

// AssignmentRepository is the primary-store implementation of
// storage.TaskAssignmentRepository
type AssignmentRepository struct {
	client *Client
	coll   *mongo.Collection
}

// NewAssignmentRepository creates an assignment repository
func NewAssignmentRepository(c *Client) *AssignmentRepository {
	return &AssignmentRepository{client: c, coll: c.db.Collection(collAssignments)}
}

func (r *AssignmentRepository) GetActiveByTaskID(ctx context.Context, taskID string) (*storage.TaskAssignment, error) {
	var a storage.TaskAssignment
	err := r.coll.FindOne(ctx, bson.M{"task_id": taskID, "is_active": true}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &a, nil
}

// Reassign deactivates the task's current assignment and inserts the new
// one in a single transaction. Concurrent reassignments serialize on the
// transaction; a task never ends up with two active assignments.
func (r *AssignmentRepository) Reassign(ctx context.Context, a *storage.TaskAssignment) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.IsActive = true
	a.CreatedAt = time.Now().UTC()

	_, err := r.client.withTransaction(ctx, func(txCtx context.Context) (interface{}, error) {
		now := time.Now().UTC()
		_, err := r.coll.UpdateMany(txCtx,
			bson.M{"task_id": a.TaskID, "is_active": true},
			bson.M{"$set": bson.M{
				"is_active":  false,
				"updated_by": a.CreatedBy,
				"updated_at": now,
			}},
		)
		if err != nil {
			return nil, fmt.Errorf("deactivate previous assignment: %w", err)
		}
		if _, err := r.coll.InsertOne(txCtx, a); err != nil {
			return nil, fmt.Errorf("insert assignment: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return "", fmt.Errorf("reassign task %s: %w", a.TaskID, err)
	}
	return a.ID, nil
}

func (r *AssignmentRepository) Unassign(ctx context.Context, taskID, updatedBy string) error {
	now := time.Now().UTC()
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"task_id": taskID, "is_active": true},
		bson.M{"$set": bson.M{
			"is_active":  false,
			"updated_by": updatedBy,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("unassign task %s: %w", taskID, err)
	}
	return nil
}
