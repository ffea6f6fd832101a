package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/task"
	"github.com/tasklink/notionbridge/internal/core/token"
	"github.com/tasklink/notionbridge/internal/core/usermap"
	"github.com/tasklink/notionbridge/internal/core/workspace"
	"github.com/tasklink/notionbridge/internal/infra/notion"
)

type fakeTasks struct {
	createFn func(ctx context.Context, in task.CreateInput) (*domain.Task, error)
	listFn   func(ctx context.Context, in task.ListInput) (*domain.TaskPage, error)
	updateFn func(ctx context.Context, taskID string, in task.UpdateInput) (*domain.Task, error)
	deleteFn func(ctx context.Context, taskID, tokenID string) error
}

func (f *fakeTasks) Create(ctx context.Context, in task.CreateInput) (*domain.Task, error) {
	return f.createFn(ctx, in)
}

func (f *fakeTasks) List(ctx context.Context, in task.ListInput) (*domain.TaskPage, error) {
	return f.listFn(ctx, in)
}

func (f *fakeTasks) Update(ctx context.Context, taskID string, in task.UpdateInput) (*domain.Task, error) {
	return f.updateFn(ctx, taskID, in)
}

func (f *fakeTasks) Delete(ctx context.Context, taskID, tokenID string) error {
	return f.deleteFn(ctx, taskID, tokenID)
}

type fakeWorkspaces struct {
	createFn        func(ctx context.Context, in workspace.CreateInput) (*domain.Workspace, error)
	getByPlatformFn func(ctx context.Context, platform domain.Platform, platformID string) (*domain.Workspace, error)
	getByIDFn       func(ctx context.Context, id string) (*domain.Workspace, error)
	listFn          func(ctx context.Context, platform domain.Platform) ([]*domain.Workspace, error)
	updateFn        func(ctx context.Context, id string, in workspace.UpdateInput) (*domain.Workspace, error)
	deleteFn        func(ctx context.Context, id string) error
}

func (f *fakeWorkspaces) Create(ctx context.Context, in workspace.CreateInput) (*domain.Workspace, error) {
	return f.createFn(ctx, in)
}

func (f *fakeWorkspaces) GetByPlatform(ctx context.Context, platform domain.Platform, platformID string) (*domain.Workspace, error) {
	return f.getByPlatformFn(ctx, platform, platformID)
}

func (f *fakeWorkspaces) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeWorkspaces) List(ctx context.Context, platform domain.Platform) ([]*domain.Workspace, error) {
	return f.listFn(ctx, platform)
}

func (f *fakeWorkspaces) Update(ctx context.Context, id string, in workspace.UpdateInput) (*domain.Workspace, error) {
	return f.updateFn(ctx, id, in)
}

func (f *fakeWorkspaces) Delete(ctx context.Context, id string) error {
	return f.deleteFn(ctx, id)
}

type fakeUserMappings struct {
	createFn            func(ctx context.Context, in usermap.CreateInput) (*domain.UserMapping, error)
	getByIDFn           func(ctx context.Context, id string) (*domain.UserMapping, error)
	getByPlatformUserFn func(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.UserMapping, error)
	resolveFn           func(ctx context.Context, platform domain.Platform, platformUserID string) (string, error)
	listFn              func(ctx context.Context, in usermap.ListInput) (*domain.UserMappingPage, error)
	deleteFn            func(ctx context.Context, id string) error
}

func (f *fakeUserMappings) Create(ctx context.Context, in usermap.CreateInput) (*domain.UserMapping, error) {
	return f.createFn(ctx, in)
}

func (f *fakeUserMappings) GetByID(ctx context.Context, id string) (*domain.UserMapping, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeUserMappings) GetByPlatformUser(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.UserMapping, error) {
	return f.getByPlatformUserFn(ctx, platform, platformUserID)
}

func (f *fakeUserMappings) Resolve(ctx context.Context, platform domain.Platform, platformUserID string) (string, error) {
	return f.resolveFn(ctx, platform, platformUserID)
}

func (f *fakeUserMappings) List(ctx context.Context, in usermap.ListInput) (*domain.UserMappingPage, error) {
	return f.listFn(ctx, in)
}

func (f *fakeUserMappings) Delete(ctx context.Context, id string) error {
	return f.deleteFn(ctx, id)
}

type fakeTokens struct {
	createFn  func(ctx context.Context, in token.CreateInput) (*domain.Token, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Token, error)
	listFn    func(ctx context.Context, activeOnly bool) ([]*domain.Token, error)
	updateFn  func(ctx context.Context, id string, in token.UpdateInput) (*domain.Token, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (f *fakeTokens) Create(ctx context.Context, in token.CreateInput) (*domain.Token, error) {
	return f.createFn(ctx, in)
}

func (f *fakeTokens) GetByID(ctx context.Context, id string) (*domain.Token, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeTokens) List(ctx context.Context, activeOnly bool) ([]*domain.Token, error) {
	return f.listFn(ctx, activeOnly)
}

func (f *fakeTokens) Update(ctx context.Context, id string, in token.UpdateInput) (*domain.Token, error) {
	return f.updateFn(ctx, id, in)
}

func (f *fakeTokens) Delete(ctx context.Context, id string) error {
	return f.deleteFn(ctx, id)
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeNotionAPI struct {
	meErr error
}

func (f *fakeNotionAPI) RetrieveDatabase(context.Context, string) (*notion.Database, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeNotionAPI) QueryDataSource(context.Context, string, *notion.Query) (*notion.QueryResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeNotionAPI) CreatePage(context.Context, notion.CreatePageParams) (*notion.Page, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeNotionAPI) UpdatePage(context.Context, string, notion.UpdatePageParams) (*notion.Page, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeNotionAPI) Me(context.Context) (*notion.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &notion.User{ID: "bot-1", Type: "bot"}, nil
}

func newTestHandler(deps Dependencies) http.Handler {
	return NewServer(Config{Addr: ":0"}, deps).Handler()
}

func doRequest(h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
}

// wantError asserts the status and the error envelope. An empty message
// checks the code only.
func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var envelope errorEnvelope
	decodeInto(t, rec, &envelope)
	if envelope.Error.Code != code {
		t.Errorf("error code = %q, want %q", envelope.Error.Code, code)
	}
	if message != "" && envelope.Error.Message != message {
		t.Errorf("error message = %q, want %q", envelope.Error.Message, message)
	}
}

func TestRootEndpoint(t *testing.T) {
	h := newTestHandler(Dependencies{})

	rec := doRequest(h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	decodeInto(t, rec, &body)
	if body["name"] != "notionbridge" {
		t.Errorf("name = %q, want %q", body["name"], "notionbridge")
	}
	if body["version"] != serviceVersion {
		t.Errorf("version = %q, want %q", body["version"], serviceVersion)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	h := newTestHandler(Dependencies{})

	rec := doRequest(h, http.MethodGet, "/nope", nil)
	wantError(t, rec, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

func TestRequestIDEchoed(t *testing.T) {
	h := newTestHandler(Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want %q", got, "req-42")
	}
}

func TestRequestIDGenerated(t *testing.T) {
	h := newTestHandler(Dependencies{})

	rec := doRequest(h, http.MethodGet, "/", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID header")
	}
}

func TestTrailingSlashNormalized(t *testing.T) {
	tasks := &fakeTasks{
		listFn: func(_ context.Context, in task.ListInput) (*domain.TaskPage, error) {
			return &domain.TaskPage{Page: in.Page, Limit: in.Limit}, nil
		},
	}
	h := newTestHandler(Dependencies{Tasks: tasks})

	rec := doRequest(h, http.MethodGet, "/tasks/?notion_database_id=1a2b3c4d5e6f708192a3b4c5d6e7f801", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(Dependencies{})

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://app.example")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("expected Access-Control-Allow-Methods on preflight response")
	}
}

func TestCORSOriginRestricted(t *testing.T) {
	s := NewServer(Config{Addr: ":0", CORSOrigins: []string{"http://allowed.example"}}, Dependencies{})
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://other.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want unset", got)
	}
}

func TestPanicRecovery(t *testing.T) {
	tasks := &fakeTasks{
		listFn: func(context.Context, task.ListInput) (*domain.TaskPage, error) {
			panic("boom")
		},
	}
	h := newTestHandler(Dependencies{Tasks: tasks})

	rec := doRequest(h, http.MethodGet, "/tasks?notion_database_id=1a2b3c4d5e6f708192a3b4c5d6e7f801", nil)
	wantError(t, rec, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

func TestHealthHealthy(t *testing.T) {
	h := newTestHandler(Dependencies{Datastore: &fakePinger{}, Notion: &fakeNotionAPI{}})

	rec := doRequest(h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report healthReport
	decodeInto(t, rec, &report)
	if report.Status != "healthy" {
		t.Errorf("status = %q, want %q", report.Status, "healthy")
	}
	if report.Checks["database"].Status != "healthy" {
		t.Errorf("database check = %q, want %q", report.Checks["database"].Status, "healthy")
	}
	if report.Checks["notion"].Status != "healthy" {
		t.Errorf("notion check = %q, want %q", report.Checks["notion"].Status, "healthy")
	}
}

func TestHealthDegradedWhenNotionDown(t *testing.T) {
	deps := Dependencies{
		Datastore: &fakePinger{},
		Notion:    &fakeNotionAPI{meErr: errors.New("connection refused")},
	}
	h := newTestHandler(deps)

	rec := doRequest(h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report healthReport
	decodeInto(t, rec, &report)
	if report.Status != "degraded" {
		t.Errorf("status = %q, want %q", report.Status, "degraded")
	}
	if report.Checks["notion"].Error == "" {
		t.Error("expected notion check to carry the probe error")
	}
}

func TestHealthUnhealthyWhenDatabaseDown(t *testing.T) {
	deps := Dependencies{
		Datastore: &fakePinger{err: errors.New("no reachable servers")},
		Notion:    &fakeNotionAPI{},
	}
	h := newTestHandler(deps)

	rec := doRequest(h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var report healthReport
	decodeInto(t, rec, &report)
	if report.Status != "unhealthy" {
		t.Errorf("status = %q, want %q", report.Status, "unhealthy")
	}
}

func TestHealthCachesProbeResults(t *testing.T) {
	pinger := &fakePinger{}
	h := newTestHandler(Dependencies{Datastore: pinger})

	rec := doRequest(h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first check status = %d, want %d", rec.Code, http.StatusOK)
	}

	// The datastore goes down inside the cache window; the cached report
	// still answers.
	pinger.err = errors.New("no reachable servers")
	rec = doRequest(h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cached check status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report healthReport
	decodeInto(t, rec, &report)
	if report.Status != "healthy" {
		t.Errorf("status = %q, want %q", report.Status, "healthy")
	}
}
