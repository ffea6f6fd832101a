package usermap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/infra/storage"
)

// CreateInput describes a platform-to-Notion user mapping to create.
type CreateInput struct {
	Platform       domain.Platform
	PlatformUserID string
	NotionUserID   string
	DisplayName    string
}

// ListInput describes a mapping query with page/limit pagination.
type ListInput struct {
	Platform       domain.Platform
	PlatformUserID string
	Page           int
	Limit          int
}

// Service manages user identity mappings so task assignees arriving as
// platform user IDs can address Notion users.
type Service interface {
	// Create stores a new mapping.
	Create(ctx context.Context, in CreateInput) (*domain.UserMapping, error)

	// GetByID retrieves a mapping by its document ID.
	GetByID(ctx context.Context, id string) (*domain.UserMapping, error)

	// GetByPlatformUser retrieves a mapping by platform and platform user ID.
	GetByPlatformUser(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.UserMapping, error)

	// Resolve maps a platform user ID onto the bound Notion user ID.
	Resolve(ctx context.Context, platform domain.Platform, platformUserID string) (string, error)

	// List returns mappings with optional filtering and pagination.
	List(ctx context.Context, in ListInput) (*domain.UserMappingPage, error)

	// Delete removes a mapping.
	Delete(ctx context.Context, id string) error
}

// DefaultService implements Service over a user mapping repository.
type DefaultService struct {
	repo storage.UserMappingRepository
}

// NewService creates a user mapping service.
func NewService(repo storage.UserMappingRepository) *DefaultService {
	return &DefaultService{repo: repo}
}

// Create stores a new mapping.
func (s *DefaultService) Create(ctx context.Context, in CreateInput) (*domain.UserMapping, error) {
	mapping, err := s.repo.Create(ctx, &domain.UserMapping{
		Platform:       in.Platform,
		PlatformUserID: in.PlatformUserID,
		NotionUserID:   in.NotionUserID,
		DisplayName:    in.DisplayName,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, &errs.ConflictError{
			Message: fmt.Sprintf("User mapping already exists for %s/%s", in.Platform, in.PlatformUserID),
		}
	}
	if err != nil {
		return nil, unexpected("Failed to create user mapping", err)
	}

	slog.Info("created user mapping",
		"mapping_id", mapping.ID,
		"platform", mapping.Platform,
		"platform_user_id", mapping.PlatformUserID,
	)
	return mapping, nil
}

// GetByID retrieves a mapping by its document ID.
func (s *DefaultService) GetByID(ctx context.Context, id string) (*domain.UserMapping, error) {
	mapping, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &errs.NotFoundError{EntityType: "UserMapping", EntityID: id}
	}
	if err != nil {
		return nil, unexpected("Failed to get user mapping", err)
	}
	return mapping, nil
}

// GetByPlatformUser retrieves a mapping by platform and platform user ID.
func (s *DefaultService) GetByPlatformUser(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.UserMapping, error) {
	mapping, err := s.repo.FindByPlatformUser(ctx, platform, platformUserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &errs.NotFoundError{
			EntityType: "UserMapping",
			EntityID:   string(platform) + ":" + platformUserID,
		}
	}
	if err != nil {
		return nil, unexpected("Failed to get user mapping", err)
	}
	return mapping, nil
}

// Resolve maps a platform user ID onto the bound Notion user ID.
func (s *DefaultService) Resolve(ctx context.Context, platform domain.Platform, platformUserID string) (string, error) {
	mapping, err := s.GetByPlatformUser(ctx, platform, platformUserID)
	if err != nil {
		return "", err
	}
	return mapping.NotionUserID, nil
}

// List returns mappings with optional filtering and pagination.
func (s *DefaultService) List(ctx context.Context, in ListInput) (*domain.UserMappingPage, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}

	skip := (in.Page - 1) * in.Limit
	mappings, total, err := s.repo.List(ctx, storage.UserMappingFilter{
		Platform:       in.Platform,
		PlatformUserID: in.PlatformUserID,
	}, skip, in.Limit)
	if err != nil {
		return nil, unexpected("Failed to list user mappings", err)
	}

	items := make([]domain.UserMapping, 0, len(mappings))
	for _, m := range mappings {
		items = append(items, *m)
	}
	return &domain.UserMappingPage{
		Mappings: items,
		Total:    total,
		Page:     in.Page,
		Limit:    in.Limit,
		HasMore:  total > int64(in.Page*in.Limit),
	}, nil
}

// Delete removes a mapping.
func (s *DefaultService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return &errs.NotFoundError{EntityType: "UserMapping", EntityID: id}
	}
	if err != nil {
		return unexpected("Failed to delete user mapping", err)
	}

	slog.Info("deleted user mapping", "mapping_id", id)
	return nil
}

func unexpected(msg string, err error) error {
	if errs.IsDomainError(err) {
		return err
	}
	slog.Error("unexpected user mapping service failure", "detail", msg, "error", err)
	return &errs.InternalError{Message: msg, Err: err}
}
