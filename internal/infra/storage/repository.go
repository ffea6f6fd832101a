package storage

import (
	"context"
	"errors"

	"github.com/tasklink/notionbridge/internal/core/domain"
)

var (
	// ErrNotFound is returned when a document doesn't exist
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("document already exists")
)

// WorkspaceRepository handles workspace mapping storage operations
type WorkspaceRepository interface {
	// Create inserts a new workspace mapping
	Create(ctx context.Context, workspace *domain.Workspace) (*domain.Workspace, error)

	// GetByID retrieves a workspace by its document ID
	GetByID(ctx context.Context, id string) (*domain.Workspace, error)

	// FindByPlatform retrieves a workspace by platform and platform ID
	FindByPlatform(ctx context.Context, platform domain.Platform, platformID string) (*domain.Workspace, error)

	// List retrieves all workspaces, optionally filtered by platform,
	// newest first
	List(ctx context.Context, platform domain.Platform) ([]*domain.Workspace, error)

	// Update applies non-nil fields and returns the updated workspace
	Update(ctx context.Context, id string, update WorkspaceUpdate) (*domain.Workspace, error)

	// Delete removes a workspace by ID
	Delete(ctx context.Context, id string) error
}

// WorkspaceUpdate carries the mutable workspace fields. Nil fields are left
// unchanged.
type WorkspaceUpdate struct {
	NotionDatabaseID *string
	Name             *string
	PropertyMappings map[string]string
}

// UserMappingRepository handles user mapping storage operations
type UserMappingRepository interface {
	// Create inserts a new user mapping
	Create(ctx context.Context, mapping *domain.UserMapping) (*domain.UserMapping, error)

	// GetByID retrieves a mapping by its document ID
	GetByID(ctx context.Context, id string) (*domain.UserMapping, error)

	// FindByPlatformUser retrieves a mapping by platform and platform user ID
	FindByPlatformUser(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.UserMapping, error)

	// List retrieves mappings matching the filter with skip/limit paging,
	// returning the total match count
	List(ctx context.Context, filter UserMappingFilter, skip, limit int) ([]*domain.UserMapping, int64, error)

	// Delete removes a mapping by ID
	Delete(ctx context.Context, id string) error
}

// UserMappingFilter narrows user mapping listings. Zero values match all.
type UserMappingFilter struct {
	Platform       domain.Platform
	PlatformUserID string
}

// TokenRepository handles Notion API token storage operations
type TokenRepository interface {
	// Create inserts a new token
	Create(ctx context.Context, token *domain.Token) (*domain.Token, error)

	// GetByID retrieves a token by its document ID
	GetByID(ctx context.Context, id string) (*domain.Token, error)

	// List retrieves tokens, optionally only active ones, newest first
	List(ctx context.Context, activeOnly bool) ([]*domain.Token, error)

	// Update applies non-nil fields and returns the updated token
	Update(ctx context.Context, id string, update TokenUpdate) (*domain.Token, error)

	// Delete removes a token by ID
	Delete(ctx context.Context, id string) error
}

// TokenUpdate carries the mutable token fields. Nil fields are left
// unchanged.
type TokenUpdate struct {
	Name        *string
	Description *string
	IsActive    *bool
}
