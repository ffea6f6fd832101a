package workspace

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/infra/notion"
	"github.com/tasklink/notionbridge/internal/infra/retry"
	"github.com/tasklink/notionbridge/internal/infra/storage/memory"
)

type fakeAPI struct {
	mu            sync.Mutex
	retrieveErr   error
	retrieveCalls int
}

func (f *fakeAPI) RetrieveDatabase(_ context.Context, databaseID string) (*notion.Database, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieveCalls++
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return &notion.Database{
		ID:          databaseID,
		Title:       []notion.RichText{{PlainText: "Tasks"}},
		DataSources: []notion.DataSourceRef{{ID: databaseID + "-ds", Name: "Tasks"}},
	}, nil
}

func (f *fakeAPI) QueryDataSource(context.Context, string, *notion.Query) (*notion.QueryResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) CreatePage(context.Context, notion.CreatePageParams) (*notion.Page, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) UpdatePage(context.Context, string, notion.UpdatePageParams) (*notion.Page, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) Me(context.Context) (*notion.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retrieveCalls
}

func newTestService(api *fakeAPI) *DefaultService {
	exec := retry.NewExecutor(retry.Policy{
		MaxRetries:   0,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}, nil)
	store := memory.NewMemoryStorage()
	return NewService(memory.NewWorkspaceRepo(store), api, exec)
}

func TestCreateWorkspace(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(api)

	ws, err := svc.Create(context.Background(), CreateInput{
		Platform:         domain.PlatformTeams,
		PlatformID:       "team-1",
		NotionDatabaseID: "db-1",
		Name:             "Engineering",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ws.ID == "" {
		t.Error("workspace ID not assigned")
	}
	if api.calls() != 1 {
		t.Errorf("retrieve calls = %d, want 1", api.calls())
	}
	if ws.PropertyMappings["title"] != "Name" {
		t.Errorf("default mappings not applied: %+v", ws.PropertyMappings)
	}
	if ws.CreatedAt.IsZero() || ws.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestCreateWorkspaceUnreachableDatabase(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "missing database",
			err:  &errs.NotionAPIError{StatusCode: http.StatusNotFound, Code: "object_not_found"},
		},
		{
			name: "unauthorized",
			err:  &errs.NotionAPIError{StatusCode: http.StatusUnauthorized},
		},
		{
			name: "rate limit exhausted",
			err:  &errs.NotionAPIError{StatusCode: http.StatusTooManyRequests},
		},
		{
			name: "transport failure",
			err:  errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{retrieveErr: tt.err}
			svc := newTestService(api)

			_, err := svc.Create(context.Background(), CreateInput{
				Platform:         domain.PlatformSlack,
				PlatformID:       "s-1",
				NotionDatabaseID: "db-bad",
				Name:             "X",
			})

			var notFound *errs.NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("expected NotFoundError, got %v", err)
			}
			if notFound.EntityType != "NotionDatabase" || notFound.EntityID != "db-bad" {
				t.Errorf("got %s/%s", notFound.EntityType, notFound.EntityID)
			}

			if workspaces, _ := svc.List(context.Background(), ""); len(workspaces) != 0 {
				t.Error("workspace must not be stored when validation fails")
			}
		})
	}
}

func TestCreateWorkspaceDuplicate(t *testing.T) {
	svc := newTestService(&fakeAPI{})
	in := CreateInput{
		Platform:         domain.PlatformTeams,
		PlatformID:       "team-1",
		NotionDatabaseID: "db-1",
		Name:             "First",
	}

	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	_, err := svc.Create(context.Background(), in)
	var conflict *errs.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Message != "Workspace already exists for teams/team-1" {
		t.Errorf("message = %q", conflict.Message)
	}
}

func TestGetWorkspaceByPlatform(t *testing.T) {
	svc := newTestService(&fakeAPI{})
	created, err := svc.Create(context.Background(), CreateInput{
		Platform:         domain.PlatformSlack,
		PlatformID:       "s-1",
		NotionDatabaseID: "db-1",
		Name:             "Slack team",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.GetByPlatform(context.Background(), domain.PlatformSlack, "s-1")
	if err != nil {
		t.Fatalf("GetByPlatform: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("got ID %q, want %q", got.ID, created.ID)
	}

	_, err = svc.GetByPlatform(context.Background(), domain.PlatformTeams, "missing")
	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.EntityID != "teams:missing" {
		t.Errorf("entity ID = %q", notFound.EntityID)
	}
}

func TestListWorkspacesByPlatform(t *testing.T) {
	svc := newTestService(&fakeAPI{})
	ctx := context.Background()

	for _, in := range []CreateInput{
		{Platform: domain.PlatformTeams, PlatformID: "t-1", NotionDatabaseID: "db-1", Name: "A"},
		{Platform: domain.PlatformTeams, PlatformID: "t-2", NotionDatabaseID: "db-2", Name: "B"},
		{Platform: domain.PlatformSlack, PlatformID: "s-1", NotionDatabaseID: "db-3", Name: "C"},
	} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("Create %s/%s: %v", in.Platform, in.PlatformID, err)
		}
	}

	teams, err := svc.List(ctx, domain.PlatformTeams)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(teams) != 2 {
		t.Errorf("teams count = %d, want 2", len(teams))
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all count = %d, want 3", len(all))
	}
}

func TestUpdateWorkspace(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(api)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Platform:         domain.PlatformTeams,
		PlatformID:       "t-1",
		NotionDatabaseID: "db-1",
		Name:             "Before",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("rename without revalidation", func(t *testing.T) {
		before := api.calls()
		name := "After"
		got, err := svc.Update(ctx, created.ID, UpdateInput{Name: &name})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.Name != "After" {
			t.Errorf("name = %q", got.Name)
		}
		if api.calls() != before {
			t.Error("rename must not hit the Notion API")
		}
	})

	t.Run("database move revalidates", func(t *testing.T) {
		before := api.calls()
		dbID := "db-2"
		got, err := svc.Update(ctx, created.ID, UpdateInput{NotionDatabaseID: &dbID})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.NotionDatabaseID != "db-2" {
			t.Errorf("database ID = %q", got.NotionDatabaseID)
		}
		if api.calls() != before+1 {
			t.Errorf("retrieve calls = %d, want %d", api.calls(), before+1)
		}
	})

	t.Run("move to unreachable database rejected", func(t *testing.T) {
		api.retrieveErr = &errs.NotionAPIError{StatusCode: http.StatusNotFound}
		defer func() { api.retrieveErr = nil }()

		dbID := "db-gone"
		_, err := svc.Update(ctx, created.ID, UpdateInput{NotionDatabaseID: &dbID})
		var notFound *errs.NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if notFound.EntityType != "NotionDatabase" {
			t.Errorf("entity type = %q", notFound.EntityType)
		}

		got, err := svc.GetByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.NotionDatabaseID != "db-2" {
			t.Errorf("binding moved to %q despite failed validation", got.NotionDatabaseID)
		}
	})

	t.Run("unknown workspace", func(t *testing.T) {
		name := "X"
		_, err := svc.Update(ctx, "missing", UpdateInput{Name: &name})
		var notFound *errs.NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if notFound.EntityType != "Workspace" {
			t.Errorf("entity type = %q", notFound.EntityType)
		}
	})
}

func TestDeleteWorkspace(t *testing.T) {
	svc := newTestService(&fakeAPI{})
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Platform:         domain.PlatformWeb,
		PlatformID:       "w-1",
		NotionDatabaseID: "db-1",
		Name:             "Gone soon",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	err = svc.Delete(ctx, created.ID)
	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError on second delete, got %v", err)
	}
}
