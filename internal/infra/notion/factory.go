package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/infra/storage"
)

// ClientSource selects the API client for one request, optionally scoped to
// a stored credential.
type ClientSource interface {
	ClientFor(ctx context.Context, tokenID string) (API, error)
}

// ClientFactory builds API clients, resolving stored tokens by ID and
// falling back to the process-wide default credential. Token values are
// never logged; only token names and IDs appear in log output.
type ClientFactory struct {
	defaults Options
	tokens   storage.TokenRepository
}

// NewClientFactory creates a factory. defaults carries the base URL, API
// version, and the default credential used when no token ID is given.
func NewClientFactory(defaults Options, tokens storage.TokenRepository) *ClientFactory {
	return &ClientFactory{defaults: defaults, tokens: tokens}
}

// ClientFor returns a client authenticated with the stored token identified
// by tokenID, or with the default credential when tokenID is empty. Inactive
// tokens are rejected before any upstream call is made.
func (f *ClientFactory) ClientFor(ctx context.Context, tokenID string) (API, error) {
	opts := f.defaults
	if tokenID == "" {
		return NewClient(opts), nil
	}

	slog.Info("resolving notion client token", "token_id", tokenID)
	token, err := f.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &errs.NotFoundError{EntityType: "Token", EntityID: tokenID}
		}
		return nil, fmt.Errorf("failed to load token %s: %w", tokenID, err)
	}
	if !token.IsActive {
		slog.Warn("attempted to use inactive token", "token_id", tokenID)
		return nil, &errs.ValidationError{
			Message: fmt.Sprintf("Token '%s' is inactive and cannot be used", token.Name),
			Field:   "token_id",
		}
	}

	slog.Info("using stored notion token", "token_name", token.Name, "token_id", tokenID)
	opts.Token = token.Value
	return NewClient(opts), nil
}
