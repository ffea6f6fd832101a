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

// UserMappingRepo implements storage.UserMappingRepository using MongoDB.
type UserMappingRepo struct {
	coll *mongo.Collection
}

// NewUserMappingRepo creates a new MongoDB user mapping repository.
func NewUserMappingRepo(db *DB) *UserMappingRepo {
	return &UserMappingRepo{coll: db.db.Collection(userMappingsCollection)}
}

type userMappingDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Platform       string             `bson:"platform"`
	PlatformUserID string             `bson:"platform_user_id"`
	NotionUserID   string             `bson:"notion_user_id"`
	DisplayName    string             `bson:"display_name,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func (d userMappingDoc) toDomain() *domain.UserMapping {
	return &domain.UserMapping{
		ID:             d.ID.Hex(),
		Platform:       domain.Platform(d.Platform),
		PlatformUserID: d.PlatformUserID,
		NotionUserID:   d.NotionUserID,
		DisplayName:    d.DisplayName,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// Create inserts a new user mapping.
func (r *UserMappingRepo) Create(ctx context.Context, mapping *domain.UserMapping) (*domain.UserMapping, error) {
	now := time.Now().UTC()
	doc := userMappingDoc{
		Platform:       string(mapping.Platform),
		PlatformUserID: mapping.PlatformUserID,
		NotionUserID:   mapping.NotionUserID,
		DisplayName:    mapping.DisplayName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, storage.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user mapping: %w", err)
	}

	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

// GetByID retrieves a mapping by its document ID.
func (r *UserMappingRepo) GetByID(ctx context.Context, id string) (*domain.UserMapping, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	var doc userMappingDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user mapping: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByPlatformUser retrieves a mapping by platform and platform user ID.
func (r *UserMappingRepo) FindByPlatformUser(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.UserMapping, error) {
	filter := bson.M{"platform": string(platform), "platform_user_id": platformUserID}

	var doc userMappingDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user mapping: %w", err)
	}
	return doc.toDomain(), nil
}

// List retrieves mappings matching the filter with skip/limit paging,
// returning the total match count.
func (r *UserMappingRepo) List(ctx context.Context, filter storage.UserMappingFilter, skip, limit int) ([]*domain.UserMapping, int64, error) {
	query := bson.M{}
	if filter.Platform != "" {
		query["platform"] = string(filter.Platform)
	}
	if filter.PlatformUserID != "" {
		query["platform_user_id"] = filter.PlatformUserID
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count user mappings: %w", err)
	}

	opts := options.Find().SetSkip(int64(skip)).SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list user mappings: %w", err)
	}
	defer cursor.Close(ctx)

	var mappings []*domain.UserMapping
	for cursor.Next(ctx) {
		var doc userMappingDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("failed to decode user mapping: %w", err)
		}
		mappings = append(mappings, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate user mappings: %w", err)
	}
	return mappings, total, nil
}

// Delete removes a mapping by ID.
func (r *UserMappingRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete user mapping: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
