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

// TaskRepository is the primary-store implementation of
// storage.TaskRepository
type TaskRepository struct {
	coll *mongo.Collection
}

// NewTaskRepository creates a task repository
func NewTaskRepository(c *Client) *TaskRepository {
	return &TaskRepository{coll: c.db.Collection(collTasks)}
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*storage.Task, error) {
	var task storage.Task
	err := r.coll.FindOne(ctx, bson.M{"_id": taskID, "is_deleted": false}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *storage.Task) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	if _, err := r.coll.InsertOne(ctx, t); err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

func (r *TaskRepository) Update(ctx context.Context, t *storage.Task) error {
	now := time.Now().UTC()
	t.UpdatedAt = &now
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": t.ID, "is_deleted": false},
		bson.M{"$set": bson.M{
			"title":       t.Title,
			"description": t.Description,
			"is_private":  t.IsPrivate,
			"updated_by":  t.UpdatedBy,
			"updated_at":  now,
		}},
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) SoftDelete(ctx context.Context, taskID, deletedBy string) error {
	now := time.Now().UTC()
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": taskID, "is_deleted": false},
		bson.M{"$set": bson.M{
			"is_deleted": true,
			"updated_by": deletedBy,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
