package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	workspacesCollection   = "workspaces"
	userMappingsCollection = "user_mappings"
	tokensCollection       = "tokens"
)

// DB wraps the MongoDB client and database handle.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a pooled MongoDB connection and verifies it with a ping.
func Connect(ctx context.Context, uri, dbName string) (*DB, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &DB{client: client, db: client.Database(dbName)}, nil
}

// CollectionCounts returns the document total per collection.
func (d *DB) CollectionCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 3)
	for _, name := range []string{workspacesCollection, userMappingsCollection, tokensCollection} {
		n, err := d.db.Collection(name).CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// Ping verifies the connection is still alive.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (d *DB) Close(ctx context.Context) error {
	if err := d.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}

// EnsureIndexes creates the unique indexes the repositories rely on. Safe to
// call on every startup; existing indexes are left alone.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := d.db.Collection(workspacesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "platform_id", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create workspaces index: %w", err)
	}

	_, err = d.db.Collection(userMappingsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "platform_user_id", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create user_mappings index: %w", err)
	}

	return nil
}
