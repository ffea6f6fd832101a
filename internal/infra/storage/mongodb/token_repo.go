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

// TokenRepo implements storage.TokenRepository using MongoDB.
type TokenRepo struct {
	coll *mongo.Collection
}

// NewTokenRepo creates a new MongoDB token repository.
func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{coll: db.db.Collection(tokensCollection)}
}

type tokenDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Token       string             `bson:"token"`
	Description string             `bson:"description,omitempty"`
	IsActive    bool               `bson:"is_active"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d tokenDoc) toDomain() *domain.Token {
	return &domain.Token{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Value:       d.Token,
		Description: d.Description,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// Create inserts a new token.
func (r *TokenRepo) Create(ctx context.Context, token *domain.Token) (*domain.Token, error) {
	now := time.Now().UTC()
	doc := tokenDoc{
		Name:        token.Name,
		Token:       token.Value,
		Description: token.Description,
		IsActive:    token.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

// GetByID retrieves a token by its document ID.
func (r *TokenRepo) GetByID(ctx context.Context, id string) (*domain.Token, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	var doc tokenDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return doc.toDomain(), nil
}

// List retrieves tokens, optionally only active ones, newest first.
func (r *TokenRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Token, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer cursor.Close(ctx)

	var tokens []*domain.Token
	for cursor.Next(ctx) {
		var doc tokenDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode token: %w", err)
		}
		tokens = append(tokens, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tokens: %w", err)
	}
	return tokens, nil
}

// Update applies non-nil fields and returns the updated token.
func (r *TokenRepo) Update(ctx context.Context, id string, update storage.TokenUpdate) (*domain.Token, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.IsActive != nil {
		set["is_active"] = *update.IsActive
	}

	var doc tokenDoc
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
		return nil, fmt.Errorf("failed to update token: %w", err)
	}
	return doc.toDomain(), nil
}

// Delete removes a token by ID.
func (r *TokenRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
