package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/huddlehq/huddle/pkg/config"
)

// Collection names in the primary store
const (
	collTeams       = "teams"
	collMemberships = "team_memberships"
	collRoles       = "roles"
	collTasks       = "tasks"
	collAssignments = "task_assignments"
	collInviteCodes = "invite_codes"
	collSyncLedger  = "sync_ledger"
)

// Client owns the connection to the primary store. Repositories share one
// Client; its lifecycle belongs to main.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient connects to the primary store and verifies the connection
func NewClient(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// Ping verifies the connection, for health probes
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from the store
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on. Safe to run
// on every startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collMemberships: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "team_id", Value: 1}}},
			{Keys: bson.D{{Key: "team_id", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		collRoles: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		collAssignments: {
			{Keys: bson.D{{Key: "task_id", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		collInviteCodes: {
			// Uniqueness backs collision detection during generation
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "kind", Value: 1}}},
		},
		collSyncLedger: {
			{
				Keys:    bson.D{{Key: "entity_type", Value: 1}, {Key: "source_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "sync_status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// withTransaction runs fn inside a multi-document transaction. The
// deployment must be a replica set; standalone servers reject sessions.
func (c *Client) withTransaction(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	session, err := c.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	return session.WithTransaction(ctx, fn)
}
