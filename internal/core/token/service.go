package token

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/infra/storage"
)

// CreateInput describes a Notion API credential to store. Tokens are always
// created active.
type CreateInput struct {
	Name        string
	Value       string
	Description string
}

// UpdateInput describes a partial token update. At least one field must be
// set. The token value itself is immutable; rotate by creating a new token.
type UpdateInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// Service manages stored Notion API tokens. Raw token values never appear in
// logs or API responses; callers expose domain.Token.Preview instead.
type Service interface {
	// Create stores a new token.
	Create(ctx context.Context, in CreateInput) (*domain.Token, error)

	// GetByID retrieves a token by its document ID.
	GetByID(ctx context.Context, id string) (*domain.Token, error)

	// List returns tokens, optionally restricted to active ones.
	List(ctx context.Context, activeOnly bool) ([]*domain.Token, error)

	// Update patches token metadata.
	Update(ctx context.Context, id string, in UpdateInput) (*domain.Token, error)

	// Delete removes a token.
	Delete(ctx context.Context, id string) error
}

// DefaultService implements Service over a token repository.
type DefaultService struct {
	repo storage.TokenRepository
}

// NewService creates a token service.
func NewService(repo storage.TokenRepository) *DefaultService {
	return &DefaultService{repo: repo}
}

// Create stores a new token.
func (s *DefaultService) Create(ctx context.Context, in CreateInput) (*domain.Token, error) {
	created, err := s.repo.Create(ctx, &domain.Token{
		Name:        in.Name,
		Value:       in.Value,
		Description: in.Description,
		IsActive:    true,
	})
	if err != nil {
		return nil, unexpected("Failed to create token", err)
	}

	slog.Info("created token", "token_id", created.ID, "name", created.Name)
	return created, nil
}

// GetByID retrieves a token by its document ID.
func (s *DefaultService) GetByID(ctx context.Context, id string) (*domain.Token, error) {
	tok, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &errs.NotFoundError{EntityType: "Token", EntityID: id}
	}
	if err != nil {
		return nil, unexpected("Failed to get token", err)
	}
	return tok, nil
}

// List returns tokens, optionally restricted to active ones.
func (s *DefaultService) List(ctx context.Context, activeOnly bool) ([]*domain.Token, error) {
	tokens, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, unexpected("Failed to list tokens", err)
	}
	return tokens, nil
}

// Update patches token metadata.
func (s *DefaultService) Update(ctx context.Context, id string, in UpdateInput) (*domain.Token, error) {
	var fields []string
	if in.Name != nil {
		fields = append(fields, "name")
	}
	if in.Description != nil {
		fields = append(fields, "description")
	}
	if in.IsActive != nil {
		fields = append(fields, "is_active")
	}
	if len(fields) == 0 {
		return nil, &errs.ValidationError{Message: "No fields to update", Field: "body"}
	}

	updated, err := s.repo.Update(ctx, id, storage.TokenUpdate{
		Name:        in.Name,
		Description: in.Description,
		IsActive:    in.IsActive,
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &errs.NotFoundError{EntityType: "Token", EntityID: id}
	}
	if err != nil {
		return nil, unexpected("Failed to update token", err)
	}

	slog.Info("updated token", "token_id", id, "fields", fields)
	return updated, nil
}

// Delete removes a token.
func (s *DefaultService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return &errs.NotFoundError{EntityType: "Token", EntityID: id}
	}
	if err != nil {
		return unexpected("Failed to delete token", err)
	}

	slog.Info("deleted token", "token_id", id)
	return nil
}

func unexpected(msg string, err error) error {
	if errs.IsDomainError(err) {
		return err
	}
	slog.Error("unexpected token service failure", "detail", msg, "error", err)
	return &errs.InternalError{Message: msg, Err: err}
}
