package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/core/usermap"
)

func testUserMapping(id string) *domain.UserMapping {
	now := time.Date(2025, 11, 2, 8, 0, 0, 0, time.UTC)
	return &domain.UserMapping{
		ID:             id,
		Platform:       domain.PlatformTeams,
		PlatformUserID: "U123",
		NotionUserID:   "notion-user-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateUserMappingEndpoint(t *testing.T) {
	var got usermap.CreateInput
	users := &fakeUserMappings{
		createFn: func(_ context.Context, in usermap.CreateInput) (*domain.UserMapping, error) {
			got = in
			return testUserMapping("um-1"), nil
		},
	}
	h := newTestHandler(Dependencies{Users: users})

	rec := doRequest(h, http.MethodPost, "/users/mappings", map[string]any{
		"platform":         "teams",
		"platform_user_id": "U123",
		"notion_user_id":   "notion-user-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	if got.Platform != domain.PlatformTeams {
		t.Errorf("Platform = %q, want %q", got.Platform, domain.PlatformTeams)
	}
	if got.PlatformUserID != "U123" {
		t.Errorf("PlatformUserID = %q, want %q", got.PlatformUserID, "U123")
	}

	var resp userMappingResponse
	decodeInto(t, rec, &resp)
	if resp.ID != "um-1" {
		t.Errorf("id = %q, want %q", resp.ID, "um-1")
	}

	// Empty display names are omitted, not serialized as "".
	if strings.Contains(rec.Body.String(), "display_name") {
		t.Errorf("empty display_name serialized in body %s", rec.Body.String())
	}
}

func TestCreateUserMappingValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{
			name:    "missing platform",
			body:    map[string]any{"platform_user_id": "U123", "notion_user_id": "n-1"},
			message: "platform is required",
		},
		{
			name:    "missing platform user id",
			body:    map[string]any{"platform": "teams", "notion_user_id": "n-1"},
			message: "platform_user_id is required",
		},
		{
			name:    "missing notion user id",
			body:    map[string]any{"platform": "teams", "platform_user_id": "U123"},
			message: "notion_user_id is required",
		},
	}

	h := newTestHandler(Dependencies{Users: &fakeUserMappings{}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodPost, "/users/mappings", tt.body)
			wantError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR", tt.message)
		})
	}
}

func TestListUserMappingsEndpoint(t *testing.T) {
	var got usermap.ListInput
	users := &fakeUserMappings{
		listFn: func(_ context.Context, in usermap.ListInput) (*domain.UserMappingPage, error) {
			got = in
			return &domain.UserMappingPage{
				Mappings: []domain.UserMapping{*testUserMapping("um-1"), *testUserMapping("um-2")},
				Total:    7,
				Page:     in.Page,
				Limit:    in.Limit,
				HasMore:  true,
			}, nil
		},
	}
	h := newTestHandler(Dependencies{Users: users})

	rec := doRequest(h, http.MethodGet, "/users/mappings?platform=teams&platform_user_id=U123&page=2&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	if got.Platform != domain.PlatformTeams || got.PlatformUserID != "U123" {
		t.Errorf("filters = (%q, %q), want (teams, U123)", got.Platform, got.PlatformUserID)
	}
	if got.Page != 2 || got.Limit != 2 {
		t.Errorf("Page/Limit = %d/%d, want 2/2", got.Page, got.Limit)
	}

	var resp listUserMappingsResponse
	decodeInto(t, rec, &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(resp.Data))
	}
	if resp.Total != 7 {
		t.Errorf("total = %d, want 7", resp.Total)
	}
	if !resp.HasMore {
		t.Error("expected has_more = true")
	}
}

func TestListUserMappingsPaginationValidation(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		message string
	}{
		{name: "page below one", query: "page=0", message: "page must be at least 1"},
		{name: "limit below one", query: "limit=0", message: "limit must be between 1 and 100"},
		{name: "limit above cap", query: "limit=101", message: "limit must be between 1 and 100"},
	}

	h := newTestHandler(Dependencies{Users: &fakeUserMappings{}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodGet, "/users/mappings?"+tt.query, nil)
			wantError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR", tt.message)
		})
	}
}

func TestResolveUserMappingEndpoint(t *testing.T) {
	users := &fakeUserMappings{
		getByPlatformUserFn: func(_ context.Context, platform domain.Platform, platformUserID string) (*domain.UserMapping, error) {
			if platform != domain.PlatformTeams || platformUserID != "U123" {
				return nil, &errs.NotFoundError{EntityType: "UserMapping", EntityID: string(platform) + ":" + platformUserID}
			}
			return testUserMapping("um-1"), nil
		},
	}
	h := newTestHandler(Dependencies{Users: users})

	// The literal /users/mappings/resolve route must win over
	// /users/mappings/{id}.
	rec := doRequest(h, http.MethodGet, "/users/mappings/resolve?platform=teams&platform_user_id=U123", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp userMappingResponse
	decodeInto(t, rec, &resp)
	if resp.NotionUserID != "notion-user-1" {
		t.Errorf("notion_user_id = %q, want %q", resp.NotionUserID, "notion-user-1")
	}
}

func TestResolveUserMappingRequiresParams(t *testing.T) {
	h := newTestHandler(Dependencies{Users: &fakeUserMappings{}})

	rec := doRequest(h, http.MethodGet, "/users/mappings/resolve?platform=teams", nil)
	wantError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR", "platform and platform_user_id are required")
}

func TestGetUserMappingEndpoint(t *testing.T) {
	users := &fakeUserMappings{
		getByIDFn: func(_ context.Context, id string) (*domain.UserMapping, error) {
			if id != "um-1" {
				return nil, &errs.NotFoundError{EntityType: "UserMapping", EntityID: id}
			}
			return testUserMapping(id), nil
		},
	}
	h := newTestHandler(Dependencies{Users: users})

	rec := doRequest(h, http.MethodGet, "/users/mappings/um-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doRequest(h, http.MethodGet, "/users/mappings/um-404", nil)
	wantError(t, rec, http.StatusNotFound, "NOT_FOUND", "UserMapping with ID 'um-404' not found")
}

func TestDeleteUserMappingEndpoint(t *testing.T) {
	var gotID string
	users := &fakeUserMappings{
		deleteFn: func(_ context.Context, id string) error {
			gotID = id
			return nil
		},
	}
	h := newTestHandler(Dependencies{Users: users})

	rec := doRequest(h, http.MethodDelete, "/users/mappings/um-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if gotID != "um-1" {
		t.Errorf("mapping ID = %q, want %q", gotID, "um-1")
	}
}
