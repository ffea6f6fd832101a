package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/infra/storage"
)

// WorkspaceRepo implements storage.WorkspaceRepository using MongoDB.
type WorkspaceRepo struct {
	coll *mongo.Collection
}

// NewWorkspaceRepo creates a new MongoDB workspace repository.
func NewWorkspaceRepo(db *DB) *WorkspaceRepo {
	return &WorkspaceRepo{coll: db.db.Collection(workspacesCollection)}
}

type workspaceDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Platform         string             `bson:"platform"`
	PlatformID       string             `bson:"platform_id"`
	NotionDatabaseID string             `bson:"notion_database_id"`
	Name             string             `bson:"name"`
	PropertyMappings map[string]string  `bson:"property_mappings"`
	CreatedAt        time.Time          `bson:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at"`
}

func (d workspaceDoc) toDomain() *domain.Workspace {
	return &domain.Workspace{
		ID:               d.ID.Hex(),
		Platform:         domain.Platform(d.Platform),
		PlatformID:       d.PlatformID,
		NotionDatabaseID: d.NotionDatabaseID,
		Name:             d.Name,
		PropertyMappings: d.PropertyMappings,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// Create inserts a new workspace mapping.
func (r *WorkspaceRepo) Create(ctx context.Context, workspace *domain.Workspace) (*domain.Workspace, error) {
	now := time.Now().UTC()
	doc := workspaceDoc{
		Platform:         string(workspace.Platform),
		PlatformID:       workspace.PlatformID,
		NotionDatabaseID: workspace.NotionDatabaseID,
		Name:             workspace.Name,
		PropertyMappings: workspace.PropertyMappings,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if doc.PropertyMappings == nil {
		doc.PropertyMappings = domain.DefaultWorkspaceMappings()
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, storage.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

// GetByID retrieves a workspace by its document ID.
func (r *WorkspaceRepo) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	var doc workspaceDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByPlatform retrieves a workspace by platform and platform ID.
func (r *WorkspaceRepo) FindByPlatform(ctx context.Context, platform domain.Platform, platformID string) (*domain.Workspace, error) {
	filter := bson.M{"platform": string(platform), "platform_id": platformID}

	var doc workspaceDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find workspace: %w", err)
	}
	return doc.toDomain(), nil
}

// List retrieves all workspaces, optionally filtered by platform, newest
// first.
func (r *WorkspaceRepo) List(ctx context.Context, platform domain.Platform) ([]*domain.Workspace, error) {
	filter := bson.M{}
	if platform != "" {
		filter["platform"] = string(platform)
	}

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer cursor.Close(ctx)

	var workspaces []*domain.Workspace
	for cursor.Next(ctx) {
		var doc workspaceDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode workspace: %w", err)
		}
		workspaces = append(workspaces, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}
	return workspaces, nil
}

// Update applies non-nil fields and returns the updated workspace.
func (r *WorkspaceRepo) Update(ctx context.Context, id string, update storage.WorkspaceUpdate) (*domain.Workspace, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	set := bson.M{}
	if update.NotionDatabaseID != nil {
		set["notion_database_id"] = *update.NotionDatabaseID
	}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.PropertyMappings != nil {
		set["property_mappings"] = update.PropertyMappings
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}
	set["updated_at"] = time.Now().UTC()

	var doc workspaceDoc
	err = r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}
	return doc.toDomain(), nil
}

// Delete removes a workspace by ID.
func (r *WorkspaceRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
