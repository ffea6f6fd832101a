package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/infra/notion"
	"github.com/tasklink/notionbridge/internal/infra/retry"
	"github.com/tasklink/notionbridge/internal/infra/storage"
)

// CreateInput describes a workspace binding to create. Property mappings are
// not caller-settable at creation; the repository applies the defaults.
type CreateInput struct {
	Platform         domain.Platform
	PlatformID       string
	NotionDatabaseID string
	Name             string
}

// UpdateInput describes a partial workspace update. Nil fields are left
// untouched.
type UpdateInput struct {
	NotionDatabaseID *string
	Name             *string
	PropertyMappings map[string]string
}

// Service manages workspace bindings between chat platforms and Notion
// databases.
type Service interface {
	// Create binds a platform workspace to a Notion database.
	Create(ctx context.Context, in CreateInput) (*domain.Workspace, error)

	// GetByPlatform retrieves a workspace by platform and platform ID.
	GetByPlatform(ctx context.Context, platform domain.Platform, platformID string) (*domain.Workspace, error)

	// GetByID retrieves a workspace by its document ID.
	GetByID(ctx context.Context, id string) (*domain.Workspace, error)

	// List returns workspaces newest first, optionally platform-filtered.
	List(ctx context.Context, platform domain.Platform) ([]*domain.Workspace, error)

	// Update patches a workspace binding.
	Update(ctx context.Context, id string, in UpdateInput) (*domain.Workspace, error)

	// Delete removes a workspace binding.
	Delete(ctx context.Context, id string) error
}

// DefaultService implements Service over a workspace repository, validating
// database bindings against the Notion API with the default credential.
type DefaultService struct {
	repo storage.WorkspaceRepository
	api  notion.API
	exec *retry.Executor
}

// NewService creates a workspace service.
func NewService(repo storage.WorkspaceRepository, api notion.API, exec *retry.Executor) *DefaultService {
	return &DefaultService{repo: repo, api: api, exec: exec}
}

// Create binds a platform workspace to a Notion database. The database must
// be reachable before the binding is stored.
func (s *DefaultService) Create(ctx context.Context, in CreateInput) (*domain.Workspace, error) {
	if err := s.validateDatabase(ctx, in.NotionDatabaseID); err != nil {
		return nil, err
	}

	ws, err := s.repo.Create(ctx, &domain.Workspace{
		Platform:         in.Platform,
		PlatformID:       in.PlatformID,
		NotionDatabaseID: in.NotionDatabaseID,
		Name:             in.Name,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, &errs.ConflictError{
			Message: fmt.Sprintf("Workspace already exists for %s/%s", in.Platform, in.PlatformID),
		}
	}
	if err != nil {
		return nil, unexpected("Failed to create workspace", err)
	}

	slog.Info("created workspace",
		"workspace_id", ws.ID,
		"platform", ws.Platform,
		"platform_id", ws.PlatformID,
		"database_id", ws.NotionDatabaseID,
	)
	return ws, nil
}

// GetByPlatform retrieves a workspace by platform and platform ID.
func (s *DefaultService) GetByPlatform(ctx context.Context, platform domain.Platform, platformID string) (*domain.Workspace, error) {
	ws, err := s.repo.FindByPlatform(ctx, platform, platformID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &errs.NotFoundError{
			EntityType: "Workspace",
			EntityID:   string(platform) + ":" + platformID,
		}
	}
	if err != nil {
		return nil, unexpected("Failed to get workspace", err)
	}
	return ws, nil
}

// GetByID retrieves a workspace by its document ID.
func (s *DefaultService) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	ws, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &errs.NotFoundError{EntityType: "Workspace", EntityID: id}
	}
	if err != nil {
		return nil, unexpected("Failed to get workspace", err)
	}
	return ws, nil
}

// List returns workspaces newest first, optionally platform-filtered.
func (s *DefaultService) List(ctx context.Context, platform domain.Platform) ([]*domain.Workspace, error) {
	workspaces, err := s.repo.List(ctx, platform)
	if err != nil {
		return nil, unexpected("Failed to list workspaces", err)
	}
	return workspaces, nil
}

// Update patches a workspace binding. A changed database ID is validated
// upstream before the binding moves.
func (s *DefaultService) Update(ctx context.Context, id string, in UpdateInput) (*domain.Workspace, error) {
	if in.NotionDatabaseID != nil {
		if err := s.validateDatabase(ctx, *in.NotionDatabaseID); err != nil {
			return nil, err
		}
	}

	ws, err := s.repo.Update(ctx, id, storage.WorkspaceUpdate{
		NotionDatabaseID: in.NotionDatabaseID,
		Name:             in.Name,
		PropertyMappings: in.PropertyMappings,
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &errs.NotFoundError{EntityType: "Workspace", EntityID: id}
	}
	if err != nil {
		return nil, unexpected("Failed to update workspace", err)
	}

	slog.Info("updated workspace", "workspace_id", id)
	return ws, nil
}

// Delete removes a workspace binding.
func (s *DefaultService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return &errs.NotFoundError{EntityType: "Workspace", EntityID: id}
	}
	if err != nil {
		return unexpected("Failed to delete workspace", err)
	}

	slog.Info("deleted workspace", "workspace_id", id)
	return nil
}

// validateDatabase confirms the database is reachable with the default
// credential. Upstream failures of any kind report the database as
// unavailable instead of leaking transport detail to the caller.
func (s *DefaultService) validateDatabase(ctx context.Context, databaseID string) error {
	_, err := retry.Do(ctx, s.exec, "databases.retrieve", func(ctx context.Context) (*notion.Database, error) {
		return s.api.RetrieveDatabase(ctx, databaseID)
	})
	if err != nil {
		slog.Warn("notion database validation failed",
			"database_id", databaseID,
			"error", err,
		)
		return &errs.NotFoundError{EntityType: "NotionDatabase", EntityID: databaseID}
	}
	return nil
}

func unexpected(msg string, err error) error {
	if errs.IsDomainError(err) {
		return err
	}
	slog.Error("unexpected workspace service failure", "detail", msg, "error", err)
	return &errs.InternalError{Message: msg, Err: err}
}
