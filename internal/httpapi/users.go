package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/core/usermap"
)

type createUserMappingRequest struct {
	Platform       string `json:"platform"`
	PlatformUserID string `json:"platform_user_id"`
	NotionUserID   string `json:"notion_user_id"`
	DisplayName    string `json:"display_name"`
}

func (req *createUserMappingRequest) validate() error {
	if strings.TrimSpace(req.Platform) == "" {
		return &errs.ValidationError{Message: "platform is required", Field: "platform"}
	}
	if strings.TrimSpace(req.PlatformUserID) == "" {
		return &errs.ValidationError{Message: "platform_user_id is required", Field: "platform_user_id"}
	}
	if strings.TrimSpace(req.NotionUserID) == "" {
		return &errs.ValidationError{Message: "notion_user_id is required", Field: "notion_user_id"}
	}
	return nil
}

type userMappingResponse struct {
	ID             string    `json:"id"`
	Platform       string    `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	NotionUserID   string    `json:"notion_user_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type listUserMappingsResponse struct {
	Data    []userMappingResponse `json:"data"`
	Total   int64                 `json:"total"`
	Page    int                   `json:"page"`
	Limit   int                   `json:"limit"`
	HasMore bool                  `json:"has_more"`
}

func (s *Server) handleCreateUserMapping(w http.ResponseWriter, r *http.Request) {
	var req createUserMappingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	mapping, err := s.users.Create(r.Context(), usermap.CreateInput{
		Platform:       domain.Platform(req.Platform),
		PlatformUserID: req.PlatformUserID,
		NotionUserID:   req.NotionUserID,
		DisplayName:    req.DisplayName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userMappingView(mapping))
}

func (s *Server) handleListUserMappings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := queryInt(q, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page < 1 {
		writeError(w, r, &errs.ValidationError{Message: "page must be at least 1", Field: "page"})
		return
	}
	limit, err := queryInt(q, "limit", 20)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit < 1 || limit > 100 {
		writeError(w, r, &errs.ValidationError{Message: "limit must be between 1 and 100", Field: "limit"})
		return
	}

	result, err := s.users.List(r.Context(), usermap.ListInput{
		Platform:       domain.Platform(q.Get("platform")),
		PlatformUserID: q.Get("platform_user_id"),
		Page:           page,
		Limit:          limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]userMappingResponse, 0, len(result.Mappings))
	for i := range result.Mappings {
		views = append(views, userMappingView(&result.Mappings[i]))
	}
	writeJSON(w, http.StatusOK, listUserMappingsResponse{
		Data:    views,
		Total:   result.Total,
		Page:    result.Page,
		Limit:   result.Limit,
		HasMore: result.HasMore,
	})
}

func (s *Server) handleResolveUserMapping(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	platform := q.Get("platform")
	platformUserID := q.Get("platform_user_id")
	if platform == "" || platformUserID == "" {
		writeError(w, r, &errs.ValidationError{
			Message: "platform and platform_user_id are required",
			Field:   "query",
		})
		return
	}

	mapping, err := s.users.GetByPlatformUser(r.Context(), domain.Platform(platform), platformUserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userMappingView(mapping))
}

func (s *Server) handleGetUserMapping(w http.ResponseWriter, r *http.Request) {
	mapping, err := s.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userMappingView(mapping))
}

func (s *Server) handleDeleteUserMapping(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userMappingView(m *domain.UserMapping) userMappingResponse {
	return userMappingResponse{
		ID:             m.ID,
		Platform:       string(m.Platform),
		PlatformUserID: m.PlatformUserID,
		NotionUserID:   m.NotionUserID,
		DisplayName:    m.DisplayName,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
