package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/infra/notion"
	"github.com/tasklink/notionbridge/internal/infra/retry"
)

// UserResolver maps platform user IDs onto Notion user IDs.
type UserResolver interface {
	Resolve(ctx context.Context, platform domain.Platform, platformUserID string) (string, error)
}

// CreateInput describes a task to create. Properties are raw Notion property
// payloads merged after the named fields, so they win on collisions.
type CreateInput struct {
	DatabaseID string
	Title      string
	AssigneeID string
	DueDate    *time.Time
	Priority   string
	Properties map[string]any
	Mappings   map[string]string
	TokenID    string
}

// ListInput describes a task query. Zero page, limit, sort field and order
// fall back to the first page of twenty, newest created first.
type ListInput struct {
	DatabaseID  string
	Status      string
	Assignee    string
	Priority    string
	ProjectID   string
	DueDateFrom *time.Time
	DueDateTo   *time.Time
	SortBy      domain.SortField
	Order       domain.SortOrder
	Page        int
	Limit       int
	Mappings    map[string]string
	TokenID     string
}

// UpdateInput describes a partial task update. At least one field must be
// set.
type UpdateInput struct {
	Status     string
	Priority   string
	AssigneeID string
	DueDate    *time.Time
	Properties map[string]any
	Mappings   map[string]string
	TokenID    string
}

// Service manages tasks stored as pages of Notion data sources.
type Service interface {
	// Create adds a task page to a database's primary data source.
	Create(ctx context.Context, in CreateInput) (*domain.Task, error)

	// List queries tasks with filtering, sorting and offset pagination.
	List(ctx context.Context, in ListInput) (*domain.TaskPage, error)

	// Update patches task properties and returns the updated task.
	Update(ctx context.Context, taskID string, in UpdateInput) (*domain.Task, error)

	// Delete archives a task page.
	Delete(ctx context.Context, taskID, tokenID string) error
}

// DefaultService implements Service against the Notion API. A nil user
// resolver disables assignee resolution and passes platform user IDs
// through as Notion user IDs.
type DefaultService struct {
	clients  notion.ClientSource
	resolver *notion.Resolver
	exec     *retry.Executor
	users    UserResolver
}

// NewService creates a task service.
func NewService(
	clients notion.ClientSource,
	resolver *notion.Resolver,
	exec *retry.Executor,
	users UserResolver,
) *DefaultService {
	return &DefaultService{
		clients:  clients,
		resolver: resolver,
		exec:     exec,
		users:    users,
	}
}

// Create adds a task page to a database's primary data source.
func (s *DefaultService) Create(ctx context.Context, in CreateInput) (*domain.Task, error) {
	api, err := s.clients.ClientFor(ctx, in.TokenID)
	if err != nil {
		return nil, err
	}

	assignee, err := s.resolveAssignee(ctx, in.AssigneeID)
	if err != nil {
		return nil, unexpected("Failed to create task", err)
	}

	dataSourceID := s.resolver.Resolve(ctx, in.DatabaseID)
	mappings := s.mappingsFor(ctx, in.DatabaseID, in.Mappings)
	properties := buildCreateProperties(in, mappings, assignee)

	page, err := retry.Do(ctx, s.exec, "pages.create", func(ctx context.Context) (*notion.Page, error) {
		return api.CreatePage(ctx, notion.CreatePageParams{
			DataSourceID: dataSourceID,
			Properties:   properties,
		})
	})
	if err != nil {
		return nil, notionErr(err, errSpec{
			entityType: "database",
			entityID:   in.DatabaseID,
			badRequest: "Invalid task data",
			fallback:   "Failed to create task",
		})
	}

	slog.Info("created task",
		"task_id", page.ID,
		"database_id", in.DatabaseID,
		"data_source_id", dataSourceID,
	)
	return mapPage(page, mappings), nil
}

// List queries tasks with filtering, sorting and offset pagination. Offset
// pages are emulated over Notion's cursor pagination: batches are fetched
// and discarded until the requested window is filled.
func (s *DefaultService) List(ctx context.Context, in ListInput) (*domain.TaskPage, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}
	if in.SortBy == "" {
		in.SortBy = domain.SortByCreatedTime
	}
	if in.Order == "" {
		in.Order = domain.SortDescending
	}

	api, err := s.clients.ClientFor(ctx, in.TokenID)
	if err != nil {
		return nil, err
	}

	dataSourceID := s.resolver.Resolve(ctx, in.DatabaseID)
	mappings := s.mappingsFor(ctx, in.DatabaseID, in.Mappings)

	filter := buildListFilter(in, mappings)
	sorts := buildSorts(in.SortBy, in.Order, mappings)

	skip := (in.Page - 1) * in.Limit
	collected := make([]notion.Page, 0, in.Limit)
	hasMore := false
	cursor := ""

	for {
		q := &notion.Query{
			Filter:      filter,
			Sorts:       sorts,
			StartCursor: cursor,
			PageSize:    min(in.Limit, 100),
		}
		res, err := retry.Do(ctx, s.exec, "data_sources.query", func(ctx context.Context) (*notion.QueryResult, error) {
			return api.QueryDataSource(ctx, dataSourceID, q)
		})
		if err != nil {
			return nil, notionErr(err, errSpec{
				entityType: "database",
				entityID:   in.DatabaseID,
				fallback:   "Failed to list tasks",
			})
		}

		if skip >= len(res.Results) {
			skip -= len(res.Results)
		} else {
			end := min(skip+(in.Limit-len(collected)), len(res.Results))
			collected = append(collected, res.Results[skip:end]...)
			remaining := len(res.Results) - end
			skip = 0
			if len(collected) >= in.Limit {
				hasMore = remaining > 0 || res.HasMore
				break
			}
		}

		if !res.HasMore || res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}

	tasks := make([]domain.Task, 0, len(collected))
	for i := range collected {
		tasks = append(tasks, *mapPage(&collected[i], mappings))
	}
	return &domain.TaskPage{
		Tasks:   tasks,
		Page:    in.Page,
		Limit:   in.Limit,
		HasMore: hasMore,
	}, nil
}

// Update patches task properties and returns the updated task.
func (s *DefaultService) Update(ctx context.Context, taskID string, in UpdateInput) (*domain.Task, error) {
	api, err := s.clients.ClientFor(ctx, in.TokenID)
	if err != nil {
		return nil, err
	}

	assignee, err := s.resolveAssignee(ctx, in.AssigneeID)
	if err != nil {
		return nil, unexpected("Failed to update task", err)
	}

	mappings := resolveMappings(in.Mappings)
	properties := buildUpdateProperties(in, mappings, assignee)
	if len(properties) == 0 {
		return nil, &errs.ValidationError{Message: "No fields to update"}
	}

	page, err := retry.Do(ctx, s.exec, "pages.update", func(ctx context.Context) (*notion.Page, error) {
		return api.UpdatePage(ctx, taskID, notion.UpdatePageParams{Properties: properties})
	})
	if err != nil {
		return nil, notionErr(err, errSpec{
			entityType: "task",
			entityID:   taskID,
			badRequest: "Invalid task update",
			fallback:   "Failed to update task",
		})
	}

	slog.Info("updated task", "task_id", taskID)
	return mapPage(page, mappings), nil
}

// Delete archives a task page. Notion has no hard delete over the API.
func (s *DefaultService) Delete(ctx context.Context, taskID, tokenID string) error {
	api, err := s.clients.ClientFor(ctx, tokenID)
	if err != nil {
		return err
	}

	archived := true
	_, err = retry.Do(ctx, s.exec, "pages.update", func(ctx context.Context) (*notion.Page, error) {
		return api.UpdatePage(ctx, taskID, notion.UpdatePageParams{Archived: &archived})
	})
	if err != nil {
		return notionErr(err, errSpec{
			entityType: "task",
			entityID:   taskID,
			badRequest: "Invalid task ID",
			fallback:   "Failed to delete task",
		})
	}

	slog.Info("archived task", "task_id", taskID)
	return nil
}

// resolveAssignee maps a platform user ID onto a Notion user ID. Assignees
// arriving through the REST surface are treated as web platform users.
func (s *DefaultService) resolveAssignee(ctx context.Context, platformUserID string) (string, error) {
	if platformUserID == "" {
		return "", nil
	}
	if s.users == nil {
		return platformUserID, nil
	}
	return s.users.Resolve(ctx, domain.PlatformWeb, platformUserID)
}

// mappingsFor merges default property mappings, the schema-derived title
// field and caller overrides, in that precedence order.
func (s *DefaultService) mappingsFor(ctx context.Context, databaseID string, overrides map[string]string) map[string]string {
	mappings := resolveMappings(nil)
	mappings["title"] = s.resolver.TitleFieldName(ctx, databaseID)
	for key, value := range overrides {
		mappings[key] = value
	}
	return mappings
}
