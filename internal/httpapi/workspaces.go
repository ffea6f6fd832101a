package httpapi

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/core/workspace"
)

type createWorkspaceRequest struct {
	Platform         string `json:"platform"`
	PlatformID       string `json:"platform_id"`
	NotionDatabaseID string `json:"notion_database_id"`
	Name             string `json:"name"`
}

func (req *createWorkspaceRequest) validate() (domain.Platform, error) {
	platform, ok := parsePlatform(req.Platform)
	if !ok {
		return "", &errs.ValidationError{Message: "Platform must be one of: teams, slack, web", Field: "platform"}
	}
	if strings.TrimSpace(req.PlatformID) == "" {
		return "", &errs.ValidationError{Message: "platform_id is required", Field: "platform_id"}
	}
	if !databaseIDPlain.MatchString(req.NotionDatabaseID) {
		return "", &errs.ValidationError{Message: "Invalid Notion database ID format", Field: "notion_database_id"}
	}
	if n := utf8.RuneCountInString(req.Name); n < 1 || n > 200 {
		return "", &errs.ValidationError{Message: "name must be between 1 and 200 characters", Field: "name"}
	}
	return platform, nil
}

type updateWorkspaceRequest struct {
	NotionDatabaseID *string           `json:"notion_database_id"`
	Name             *string           `json:"name"`
	PropertyMappings map[string]string `json:"property_mappings"`
}

func (req *updateWorkspaceRequest) validate() error {
	if req.NotionDatabaseID != nil && !databaseIDPlain.MatchString(*req.NotionDatabaseID) {
		return &errs.ValidationError{Message: "Invalid Notion database ID format", Field: "notion_database_id"}
	}
	if req.Name != nil {
		if n := utf8.RuneCountInString(*req.Name); n < 1 || n > 200 {
			return &errs.ValidationError{Message: "name must be between 1 and 200 characters", Field: "name"}
		}
	}
	return nil
}

type workspaceResponse struct {
	ID               string    `json:"id"`
	Platform         string    `json:"platform"`
	PlatformID       string    `json:"platform_id"`
	NotionDatabaseID string    `json:"notion_database_id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type listWorkspacesResponse struct {
	Workspaces []workspaceResponse `json:"workspaces"`
	Count      int                 `json:"count"`
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	platform, err := req.validate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ws, err := s.workspaces.Create(r.Context(), workspace.CreateInput{
		Platform:         platform,
		PlatformID:       req.PlatformID,
		NotionDatabaseID: req.NotionDatabaseID,
		Name:             req.Name,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, workspaceView(ws))
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	platform := domain.Platform(r.URL.Query().Get("platform"))

	list, err := s.workspaces.List(r.Context(), platform)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]workspaceResponse, 0, len(list))
	for _, ws := range list {
		views = append(views, workspaceView(ws))
	}
	writeJSON(w, http.StatusOK, listWorkspacesResponse{Workspaces: views, Count: len(views)})
}

func (s *Server) handleGetWorkspaceByPlatform(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	platform := q.Get("platform")
	platformID := q.Get("platform_id")
	if platform == "" || platformID == "" {
		writeError(w, r, &errs.ValidationError{
			Message: "platform and platform_id are required",
			Field:   "query",
		})
		return
	}

	ws, err := s.workspaces.GetByPlatform(r.Context(), domain.Platform(platform), platformID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workspaceView(ws))
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaces.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workspaceView(ws))
}

func (s *Server) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req updateWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	ws, err := s.workspaces.Update(r.Context(), r.PathValue("id"), workspace.UpdateInput{
		NotionDatabaseID: req.NotionDatabaseID,
		Name:             req.Name,
		PropertyMappings: req.PropertyMappings,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workspaceView(ws))
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := s.workspaces.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func workspaceView(ws *domain.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:               ws.ID,
		Platform:         string(ws.Platform),
		PlatformID:       ws.PlatformID,
		NotionDatabaseID: ws.NotionDatabaseID,
		Name:             ws.Name,
		CreatedAt:        ws.CreatedAt,
		UpdatedAt:        ws.UpdatedAt,
	}
}

func parsePlatform(raw string) (domain.Platform, bool) {
	platform := domain.Platform(strings.ToLower(raw))
	switch platform {
	case domain.PlatformTeams, domain.PlatformSlack, domain.PlatformWeb:
		return platform, true
	}
	return "", false
}
